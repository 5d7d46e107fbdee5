package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/storage"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

func upload(t *testing.T, env *testEnv, project *models.Project, fields map[string]string, file *testutil.MultipartFile, token string) (int, *models.Asset) {
	t.Helper()

	req := testutil.MultipartRequest(t, projectPath(project, "/assets"), fields, file, token)
	rr := env.serve(req)
	if rr.Code != http.StatusCreated {
		return rr.Code, nil
	}

	var resp dto.AssetResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Asset)

	var stored models.Asset
	require.NoError(t, env.DB.First(&stored, "id = ?", resp.Asset.ID).Error)
	return rr.Code, &stored
}

func TestUploadAndDownloadAsset(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)

	code, asset := upload(t, env, project, map[string]string{"name": "Brand logo"}, &testutil.MultipartFile{
		Field:       "file",
		FileName:    "logo.png",
		ContentType: "image/png",
		Content:     pngBytes,
	}, env.Token)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, "Brand logo", asset.Name)
	assert.Equal(t, "logo.png", asset.FileName)
	assert.Equal(t, "image/png", asset.MimeType)
	assert.Equal(t, int64(len(pngBytes)), asset.SizeBytes)
	assert.Nil(t, asset.FolderID)
	assert.Contains(t, asset.StorageKey, project.ID.String()+"/root/")
	assert.True(t, env.Store.Has(asset.StorageKey))

	t.Run("viewer downloads", func(t *testing.T) {
		path := projectPath(project, "/assets/"+asset.ID.String()+"/download")
		rr := env.do(t, http.MethodGet, path, nil, viewerToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename=logo.png`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, pngBytes, rr.Body.Bytes())
	})

	t.Run("missing object", func(t *testing.T) {
		require.NoError(t, env.Store.Delete(testutil.TestContext(t), asset.StorageKey))

		path := projectPath(project, "/assets/"+asset.ID.String()+"/download")
		rr := env.do(t, http.MethodGet, path, nil, env.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("list", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, projectPath(project, "/assets?folder_id=root"), nil, viewerToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var assets []models.Asset
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assets))
		require.Len(t, assets, 1)
		assert.Equal(t, asset.ID, assets[0].ID)
	})
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)

	foreignFolder := models.AssetFolder{ProjectID: env.project(t).ID, Name: "Elsewhere"}
	require.NoError(t, env.DB.Create(&foreignFolder).Error)

	png := func(name string) *testutil.MultipartFile {
		return &testutil.MultipartFile{Field: "file", FileName: name, ContentType: "image/png", Content: pngBytes}
	}

	tests := []struct {
		name       string
		fields     map[string]string
		file       *testutil.MultipartFile
		token      string
		wantStatus int
	}{
		{"viewer is forbidden", nil, png("a.png"), viewerToken, http.StatusForbidden},
		{"missing file", map[string]string{"name": "x"}, nil, env.Token, http.StatusBadRequest},
		{"empty file", nil, &testutil.MultipartFile{Field: "file", FileName: "e.txt", ContentType: "text/plain"}, env.Token, http.StatusBadRequest},
		{"disallowed type", nil, &testutil.MultipartFile{Field: "file", FileName: "setup.exe", ContentType: "application/x-msdownload", Content: []byte("MZ")}, env.Token, http.StatusUnsupportedMediaType},
		{"folder of another project", map[string]string{"folder_id": foreignFolder.ID.String()}, png("b.png"), env.Token, http.StatusNotFound},
		{"malformed folder id", map[string]string{"folder_id": "nope"}, png("c.png"), env.Token, http.StatusBadRequest},
		{
			"too large",
			nil,
			&testutil.MultipartFile{Field: "file", FileName: "big.txt", ContentType: "text/plain", Content: bytes.Repeat([]byte("a"), storage.MaxUploadBytes+1)},
			env.Token,
			http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := upload(t, env, project, tt.fields, tt.file, tt.token)
			assert.Equal(t, tt.wantStatus, code)
		})
	}

	assert.Zero(t, env.Store.Len(), "rejected uploads must not reach storage")
}

func TestUploadSniffsGenericContentType(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)

	code, asset := upload(t, env, project, nil, &testutil.MultipartFile{
		Field:       "file",
		FileName:    "notes.txt",
		ContentType: "application/octet-stream",
		Content:     []byte("renewal checklist\n- rotate keys\n"),
	}, env.Token)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "text/plain", asset.MimeType)
	assert.Equal(t, "notes.txt", asset.Name)
}

func TestFolders(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)

	rr := env.do(t, http.MethodPost, projectPath(project, "/folders"), dto.CreateFolderRequest{Name: "Contracts"}, memberToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created dto.FolderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	folder := created.Folder
	require.NotNil(t, folder)

	fields := map[string]string{"folder_id": folder.ID.String()}
	for _, name := range []string{"one.pdf", "two.pdf"} {
		code, asset := upload(t, env, project, fields, &testutil.MultipartFile{
			Field:       "file",
			FileName:    name,
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.4 " + name),
		}, memberToken)
		require.Equal(t, http.StatusCreated, code)
		require.NotNil(t, asset.FolderID)
		assert.Equal(t, folder.ID, *asset.FolderID)
	}
	code, rootAsset := upload(t, env, project, nil, &testutil.MultipartFile{
		Field: "file", FileName: "root.png", ContentType: "image/png", Content: pngBytes,
	}, memberToken)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, 3, env.Store.Len())

	t.Run("list by folder", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, projectPath(project, "/assets?folder_id="+folder.ID.String()), nil, memberToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var assets []models.Asset
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assets))
		assert.Len(t, assets, 2)
	})

	t.Run("member cannot delete", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, projectPath(project, "/folders/"+folder.ID.String()), nil, memberToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("delete cascades to assets", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, projectPath(project, "/folders/"+folder.ID.String()), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.FolderDeleteResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.AssetsDeleted)

		assert.Equal(t, 1, env.Store.Len())
		assert.True(t, env.Store.Has(rootAsset.StorageKey))

		var n int64
		require.NoError(t, env.DB.Unscoped().Model(&models.Asset{}).Where("project_id = ?", project.ID).Count(&n).Error)
		assert.Equal(t, int64(1), n)

		var entry models.AuditLog
		require.NoError(t, env.DB.Where("entity_type = ? AND action = ?", "folder", "delete").First(&entry).Error)
		assert.Equal(t, float64(2), entry.Metadata["assets_deleted"])
	})

	t.Run("delete single asset", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, projectPath(project, "/assets/"+rootAsset.ID.String()), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Zero(t, env.Store.Len())
	})

	t.Run("unknown folder", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, projectPath(project, "/folders/"+folder.ID.String()), nil, env.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
