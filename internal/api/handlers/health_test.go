package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/handlers"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("database only", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/health", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, map[string]string{"database": "healthy"}, resp.Services)
	})

	t.Run("ready", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/ready", nil, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
	})
}

func TestHealthReportsRedis(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := chi.NewRouter()
	r.Get("/health", handlers.NewHealthHandler(tc.DB, client).Health)

	get := func() (int, handlers.HealthResponse) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		var resp handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return rr.Code, resp
	}

	code, resp := get()
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Services["redis"])

	mr.Close()

	code, resp = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Services["redis"])
	assert.Equal(t, "healthy", resp.Services["database"])
}

func TestProjectInviteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t)
	_, memberToken := env.NewUserWithRole(t, "member")

	rr := env.do(t, http.MethodPost, projectPath(project, "/invites"), dto.InviteRequest{Email: "x@example.com", Role: "viewer"}, memberToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, projectPath(project, "/invites"), dto.InviteRequest{Email: "Freelancer@Example.com", Role: "viewer"}, env.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp dto.InviteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Invite)
	assert.Equal(t, "freelancer@example.com", resp.Invite.Email)
	assert.Equal(t, "project", resp.Invite.Type)
	assert.Equal(t, int64(1), auditCount(t, env, "invite", "create"))
}
