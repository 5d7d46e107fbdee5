package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateService(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, viewerToken := env.NewUserWithRole(t, models.RoleViewer)

	t.Run("defaults", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, projectPath(project, "/services"), map[string]any{"name": "Vercel"}, env.Token)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var resp dto.ServiceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, models.CostMonthly, resp.Service.CostFrequency)
		assert.Equal(t, "USD", resp.Service.CostCurrency)
		assert.Equal(t, models.ServiceStatusActive, resp.Service.Status)
		assert.True(t, resp.Service.CostAmount.IsZero())
		assert.Nil(t, resp.Service.RenewalDate)
	})

	t.Run("full body", func(t *testing.T) {
		body := map[string]any{
			"name":           "Postmark",
			"url":            "https://postmarkapp.com",
			"cost_amount":    "12.50",
			"cost_frequency": "yearly",
			"cost_currency":  "EUR",
			"renewal_date":   "2026-11-01",
		}
		rr := env.do(t, http.MethodPost, projectPath(project, "/services"), body, env.Token)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var resp dto.ServiceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		var stored models.Service
		require.NoError(t, env.DB.First(&stored, "id = ?", resp.Service.ID).Error)
		assert.True(t, stored.CostAmount.Equal(decimal.RequireFromString("12.50")), stored.CostAmount.String())
		assert.Equal(t, models.CostYearly, stored.CostFrequency)
		assert.Equal(t, "EUR", stored.CostCurrency)
		require.NotNil(t, stored.RenewalDate)
		assert.Equal(t, "2026-11-01", stored.RenewalDate.UTC().Format("2006-01-02"))
	})

	tests := []struct {
		name       string
		body       map[string]any
		token      string
		wantStatus int
		wantField  string
	}{
		{"viewer is forbidden", map[string]any{"name": "X"}, viewerToken, http.StatusForbidden, ""},
		{"missing name", map[string]any{"cost_amount": "1"}, env.Token, http.StatusBadRequest, "name"},
		{"negative cost", map[string]any{"name": "X", "cost_amount": "-1"}, env.Token, http.StatusBadRequest, "cost_amount"},
		{"three decimals", map[string]any{"name": "X", "cost_amount": "1.005"}, env.Token, http.StatusBadRequest, "cost_amount"},
		{"lowercase currency", map[string]any{"name": "X", "cost_currency": "usd"}, env.Token, http.StatusBadRequest, "cost_currency"},
		{"bad frequency", map[string]any{"name": "X", "cost_frequency": "weekly"}, env.Token, http.StatusBadRequest, "cost_frequency"},
		{"bad date", map[string]any{"name": "X", "renewal_date": "01/11/2026"}, env.Token, http.StatusBadRequest, "renewal_date"},
		{"bad url", map[string]any{"name": "X", "url": "ftp://example.com"}, env.Token, http.StatusBadRequest, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, projectPath(project, "/services"), tt.body, tt.token)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantField != "" {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "Validation failed", resp.Error)
				assert.Contains(t, resp.Details, tt.wantField)
			}
		})
	}
}

func TestListServices(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	testutil.CreateTestService(t, env.DB, project.ID, "Beta", nil)
	paused := testutil.CreateTestService(t, env.DB, project.ID, "Alpha", nil)
	require.NoError(t, env.DB.Model(paused).Update("status", models.ServiceStatusPaused).Error)

	other := env.project(t)
	testutil.CreateTestService(t, env.DB, other.ID, "Elsewhere", nil)

	rr := env.do(t, http.MethodGet, projectPath(project, "/services"), nil, env.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var services []models.Service
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &services))
	require.Len(t, services, 2)
	assert.Equal(t, "Alpha", services[0].Name)
	assert.Equal(t, "Beta", services[1].Name)

	rr = env.do(t, http.MethodGet, projectPath(project, "/services?status=paused"), nil, env.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &services))
	require.Len(t, services, 1)
	assert.Equal(t, "Alpha", services[0].Name)
}

func TestUpdateService(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Hosting", testutil.Date(2026, 11, 1))
	path := projectPath(project, "/services/"+svc.ID.String())

	t.Run("changes cost", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, path, map[string]any{"cost_amount": "25.00", "plan_name": "Pro"}, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.ServiceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Pro", resp.Service.PlanName)
		assert.True(t, resp.Service.CostAmount.Equal(decimal.NewFromInt(25)))
		require.NotNil(t, resp.Service.RenewalDate)
	})

	t.Run("empty renewal date clears it", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, path, map[string]any{"renewal_date": ""}, env.Token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.ServiceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Nil(t, resp.Service.RenewalDate)

		var stored models.Service
		require.NoError(t, env.DB.First(&stored, "id = ?", svc.ID).Error)
		assert.Nil(t, stored.RenewalDate)
	})

	t.Run("enums cannot be blanked", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, path, map[string]any{
			"status":         "",
			"cost_currency":  " ",
			"cost_frequency": "",
		}, env.Token)
		require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "status")
		assert.Contains(t, resp.Details, "cost_currency")
		assert.Contains(t, resp.Details, "cost_frequency")

		var stored models.Service
		require.NoError(t, env.DB.First(&stored, "id = ?", svc.ID).Error)
		assert.NotEmpty(t, stored.Status)
		assert.NotEmpty(t, stored.CostCurrency)
		assert.NotEmpty(t, stored.CostFrequency)
	})

	t.Run("service of another project", func(t *testing.T) {
		other := env.project(t)
		rr := env.do(t, http.MethodPatch, projectPath(other, "/services/"+svc.ID.String()), map[string]any{"name": "X"}, env.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad service id", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, projectPath(project, "/services/nope"), nil, env.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDeleteServiceRemovesCredentials(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	svc := testutil.CreateTestService(t, env.DB, project.ID, "Stripe", nil)
	_, memberToken := env.NewUserWithRole(t, models.RoleMember)

	rr := env.do(t, http.MethodPost, projectPath(project, "/credentials"), map[string]any{
		"project_service_id": svc.ID.String(),
		"key_name":           "Live key",
		"credentials":        map[string]string{"api_key": "sk_live_123"},
	}, env.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	path := projectPath(project, "/services/"+svc.ID.String())

	rr = env.do(t, http.MethodDelete, path, nil, memberToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodDelete, path, nil, env.Token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var n int64
	require.NoError(t, env.DB.Model(&models.Credential{}).Where("project_service_id = ?", svc.ID).Count(&n).Error)
	assert.Zero(t, n)

	rr = env.do(t, http.MethodGet, path, nil, env.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
