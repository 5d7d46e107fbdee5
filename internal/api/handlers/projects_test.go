package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projectPage struct {
	Data  []models.Project `json:"data"`
	Total int64            `json:"total"`
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)
	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)
	_, outsiderToken := env.outsider(t)

	wsID := env.Workspace.ID.String()
	tests := []struct {
		name       string
		body       interface{}
		token      string
		wantStatus int
	}{
		{"member creates", dto.CreateProjectRequest{WorkspaceID: wsID, Name: "Storefront"}, memberToken, http.StatusCreated},
		{"viewer is forbidden", dto.CreateProjectRequest{WorkspaceID: wsID, Name: "Nope"}, viewerToken, http.StatusForbidden},
		{"outsider sees not found", dto.CreateProjectRequest{WorkspaceID: wsID, Name: "Nope"}, outsiderToken, http.StatusNotFound},
		{"missing name", dto.CreateProjectRequest{WorkspaceID: wsID}, env.Token, http.StatusBadRequest},
		{"bad workspace id", dto.CreateProjectRequest{WorkspaceID: "nope", Name: "Nope"}, env.Token, http.StatusBadRequest},
		{"invalid body", []string{"x"}, env.Token, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/projects", tt.body, tt.token)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			if tt.wantStatus == http.StatusCreated {
				var resp dto.ProjectResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				require.NotNil(t, resp.Project)
				assert.Equal(t, "Storefront", resp.Project.Name)
				assert.Equal(t, models.ProjectStatusActive, resp.Project.Status)
				assert.Nil(t, resp.Project.ArchivedAt)
			}
		})
	}
}

func TestListProjects(t *testing.T) {
	env := newTestEnv(t)
	first := env.project(t)
	second := env.project(t)
	require.NoError(t, env.DB.Model(second).Update("status", models.ProjectStatusArchived).Error)

	// A user whose only access is one direct project membership.
	guest, guestToken := env.NewUserWithRole(t, "")
	testutil.AddProjectMember(t, env.DB, first.ID, guest.ID, models.RoleViewer)

	_, outsiderToken := env.outsider(t)

	tests := []struct {
		name      string
		query     string
		token     string
		wantTotal int64
	}{
		{"owner sees all", "", env.Token, 2},
		{"status filter", "?status=archived", env.Token, 1},
		{"workspace filter", "?workspace_id=" + env.Workspace.ID.String(), env.Token, 2},
		{"direct member sees one", "", guestToken, 1},
		{"outsider sees none", "", outsiderToken, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/projects"+tt.query, nil, tt.token)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var page projectPage
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Len(t, page.Data, int(tt.wantTotal))
		})
	}

	t.Run("bad workspace filter", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/projects?workspace_id=nope", nil, env.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/projects?status=deleted", nil, outsiderToken)
		require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "status")
	})
}

func TestGetProject(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)

	guest, guestToken := env.NewUserWithRole(t, "")
	testutil.AddProjectMember(t, env.DB, project.ID, guest.ID, models.RoleAdmin)
	_, outsiderToken := env.outsider(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantRole   string
	}{
		{"owner", env.Token, http.StatusOK, "owner"},
		{"direct project admin", guestToken, http.StatusOK, "admin"},
		{"outsider", outsiderToken, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, projectPath(project, ""), nil, tt.token)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus == http.StatusOK {
				var resp dto.ProjectResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantRole, resp.Role)
				assert.Equal(t, project.ID, resp.Project.ID)
			}
		})
	}

	t.Run("unknown project", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000001", nil, env.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)

	archived := "archived"
	active := "active"

	t.Run("viewer is forbidden", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, projectPath(project, ""), dto.UpdateProjectRequest{Status: &archived}, viewerToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid status", func(t *testing.T) {
		bad := "deleted"
		rr := env.do(t, http.MethodPatch, projectPath(project, ""), dto.UpdateProjectRequest{Status: &bad}, memberToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("archive stamps archived_at", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, projectPath(project, ""), dto.UpdateProjectRequest{Status: &archived}, memberToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.ProjectResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, models.ProjectStatusArchived, resp.Project.Status)
		assert.NotNil(t, resp.Project.ArchivedAt)
	})

	t.Run("reactivate clears archived_at", func(t *testing.T) {
		name := "Renamed"
		rr := env.do(t, http.MethodPatch, projectPath(project, ""), dto.UpdateProjectRequest{Status: &active, Name: &name}, memberToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var stored models.Project
		require.NoError(t, env.DB.First(&stored, "id = ?", project.ID).Error)
		assert.Equal(t, models.ProjectStatusActive, stored.Status)
		assert.Nil(t, stored.ArchivedAt)
		assert.Equal(t, "Renamed", stored.Name)
	})

	var entries []models.AuditLog
	require.NoError(t, env.DB.Where("entity_type = ? AND action = ?", "project", "update").Find(&entries).Error)
	require.Len(t, entries, 2)

	var fields []any
	for _, e := range entries {
		fields = append(fields, e.Metadata["fields"])
	}
	assert.Contains(t, fields, []any{"archived_at", "status"})
	assert.Contains(t, fields, []any{"archived_at", "name", "status"})
}

func TestDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)
	_, adminToken := env.NewUserWithRole(t, models.RoleAdmin)

	rr := env.do(t, http.MethodDelete, projectPath(project, ""), nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodDelete, projectPath(project, ""), nil, adminToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, projectPath(project, ""), nil, env.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, int64(1), auditCount(t, env, "project", "delete"))
}
