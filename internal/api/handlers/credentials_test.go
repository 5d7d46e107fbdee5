package handlers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCredential(t *testing.T, env *testEnv, project *models.Project, svc *models.Service, fields map[string]any) dto.CredentialResponse {
	t.Helper()

	rr := env.do(t, http.MethodPost, projectPath(project, "/credentials"), map[string]any{
		"project_service_id": svc.ID.String(),
		"environment":        "staging",
		"key_name":           "Primary",
		"credentials":        fields,
	}, env.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp dto.CredentialMutationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Credential
}

func TestCredentialRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)

	cred := createCredential(t, env, project, svc, map[string]any{"api_key": "sk_live_abc", "webhook_secret": "whsec_1"})
	assert.Equal(t, "staging", cred.Environment)
	assert.Equal(t, "api_key", cred.CredentialType)
	assert.False(t, cred.DecryptionError)
	assert.Equal(t, "sk_live_abc", cred.Credentials["api_key"])

	t.Run("stored sealed", func(t *testing.T) {
		var row models.Credential
		require.NoError(t, env.DB.First(&row, "id = ?", cred.ID).Error)
		assert.Equal(t, models.CredentialFormatAge, row.FormatVersion)
		assert.NotContains(t, row.CredentialsEncrypted, "sk_live_abc")
	})

	t.Run("get decrypts", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, projectPath(project, "/credentials/"+cred.ID), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var got dto.CredentialResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, map[string]any{"api_key": "sk_live_abc", "webhook_secret": "whsec_1"}, got.Credentials)
	})

	t.Run("update replaces fields", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, projectPath(project, "/credentials/"+cred.ID), map[string]any{
			"key_name":    "Rotated",
			"credentials": map[string]any{"api_key": "sk_live_new"},
		}, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.CredentialMutationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Rotated", resp.Credential.KeyName)
		assert.Equal(t, map[string]any{"api_key": "sk_live_new"}, resp.Credential.Credentials)
	})

	t.Run("environment cannot be blanked", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, projectPath(project, "/credentials/"+cred.ID),
			map[string]any{"environment": "", "credential_type": ""}, env.Token)
		require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "environment")
		assert.Contains(t, resp.Details, "credential_type")
	})

	t.Run("list filters by service", func(t *testing.T) {
		other := testutil.CreateTestService(t, env.DB, project.ID, "Resend", nil)
		createCredential(t, env, project, other, map[string]any{"api_key": "re_123"})

		rr := env.do(t, http.MethodGet, projectPath(project, "/credentials?service_id="+svc.ID.String()), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var list []dto.CredentialResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, cred.ID, list[0].ID)
	})
}

func TestCredentialPermissions(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)
	cred := createCredential(t, env, project, svc, map[string]any{"api_key": "sk"})

	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)
	_, outsiderToken := env.outsider(t)

	credPath := projectPath(project, "/credentials/"+cred.ID)
	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"viewer cannot list secrets", http.MethodGet, projectPath(project, "/credentials"), viewerToken, http.StatusForbidden},
		{"viewer cannot read secret", http.MethodGet, credPath, viewerToken, http.StatusForbidden},
		{"member reads", http.MethodGet, credPath, memberToken, http.StatusOK},
		{"member cannot delete", http.MethodDelete, credPath, memberToken, http.StatusForbidden},
		{"outsider", http.MethodGet, credPath, outsiderToken, http.StatusNotFound},
		{"unknown credential", http.MethodGet, projectPath(project, "/credentials/00000000-0000-0000-0000-000000000001"), env.Token, http.StatusNotFound},
		{"owner deletes", http.MethodDelete, credPath, env.Token, http.StatusOK},
		{"deleted is gone", http.MethodGet, credPath, env.Token, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, nil, tt.token)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestCredentialValidation(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)

	otherProject := env.project(t)
	foreign := testutil.CreateTestService(t, env.DB, otherProject.ID, "Foreign", nil)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"empty fields", map[string]any{"project_service_id": svc.ID.String(), "key_name": "K", "credentials": map[string]any{}}, "credentials"},
		{"password without password", map[string]any{"project_service_id": svc.ID.String(), "key_name": "K", "credential_type": "password", "credentials": map[string]any{"username": "u"}}, "password"},
		{"oauth without secret", map[string]any{"project_service_id": svc.ID.String(), "key_name": "K", "credential_type": "oauth", "credentials": map[string]any{"client_id": "id"}}, "client_secret"},
		{"unknown environment", map[string]any{"project_service_id": svc.ID.String(), "key_name": "K", "environment": "qa", "credentials": map[string]any{"k": "v"}}, "environment"},
		{"service of another project", map[string]any{"project_service_id": foreign.ID.String(), "key_name": "K", "credentials": map[string]any{"k": "v"}}, "project_service_id"},
		{"missing key name", map[string]any{"project_service_id": svc.ID.String(), "credentials": map[string]any{"k": "v"}}, "key_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, projectPath(project, "/credentials"), tt.body, env.Token)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Contains(t, resp.Details, tt.wantField)
		})
	}
}

func TestCredentialStoredFormats(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)

	insert := func(t *testing.T, stored string, version int) *models.Credential {
		t.Helper()
		row := &models.Credential{
			ProjectID:            project.ID,
			ProjectServiceID:     svc.ID,
			Environment:          models.EnvProduction,
			CredentialType:       "api_key",
			KeyName:              "Imported",
			CredentialsEncrypted: stored,
			FormatVersion:        version,
			CreatedBy:            env.User.ID,
		}
		require.NoError(t, env.DB.Create(row).Error)

		var persisted models.Credential
		require.NoError(t, env.DB.First(&persisted, "id = ?", row.ID).Error)
		require.Equal(t, version, persisted.FormatVersion)
		return row
	}

	t.Run("legacy plaintext rows are readable", func(t *testing.T) {
		row := insert(t, `{"api_key":"legacy_key"}`, models.CredentialFormatLegacyJSON)

		rr := env.do(t, http.MethodGet, projectPath(project, "/credentials/"+row.ID.String()), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var got dto.CredentialResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.False(t, got.DecryptionError)
		assert.Equal(t, "legacy_key", got.Credentials["api_key"])
	})

	t.Run("updating a legacy row reseals it", func(t *testing.T) {
		row := insert(t, `{"api_key":"old"}`, models.CredentialFormatLegacyJSON)

		rr := env.do(t, http.MethodPatch, projectPath(project, "/credentials/"+row.ID.String()),
			map[string]any{"credentials": map[string]any{"api_key": "rotated_key"}}, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var stored models.Credential
		require.NoError(t, env.DB.First(&stored, "id = ?", row.ID).Error)
		assert.Equal(t, models.CredentialFormatAge, stored.FormatVersion)
		assert.False(t, strings.Contains(stored.CredentialsEncrypted, "rotated_key"))
	})

	t.Run("corrupt ciphertext is flagged", func(t *testing.T) {
		row := insert(t, "not-a-ciphertext", models.CredentialFormatAge)

		rr := env.do(t, http.MethodGet, projectPath(project, "/credentials"), nil, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var list []dto.CredentialResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))

		var found bool
		for _, c := range list {
			if c.ID == row.ID.String() {
				found = true
				assert.True(t, c.DecryptionError)
				assert.Nil(t, c.Credentials)
			} else {
				assert.False(t, c.DecryptionError)
			}
		}
		assert.True(t, found)
	})
}

func TestCredentialWithoutWorkspaceKey(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)

	require.NoError(t, env.DB.Model(&models.Workspace{}).
		Where("id = ?", env.Workspace.ID).
		Update("encryption_key_id", nil).Error)

	rr := env.do(t, http.MethodPost, projectPath(project, "/credentials"), map[string]any{
		"project_service_id": svc.ID.String(),
		"key_name":           "K",
		"credentials":        map[string]any{"api_key": "sk"},
	}, env.Token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Encryption is not configured for this workspace", resp.Error)

	var n int64
	require.NoError(t, env.DB.Model(&models.Credential{}).Count(&n).Error)
	assert.Zero(t, n)
}
