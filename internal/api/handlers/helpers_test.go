package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/api"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/credentials"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/invites"
	"github.com/hugh/nerlude/internal/notify"
	"github.com/hugh/nerlude/internal/renewal"
	"github.com/hugh/nerlude/internal/storage"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testCronSecret = "cron-secret-for-tests"

// fixedNow is the date the renewal scanner and workspace summary see.
var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	*testutil.TestSetup
	Router  *api.Router
	Store   *storage.MemoryStore
	Invites *invites.Service
	Logger  *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tc := testutil.NewTestContext(t)
	t.Cleanup(tc.Cleanup)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewWriter(tc.DB, logger)
	store := storage.NewMemoryStore()
	inviteService := invites.NewService(tc.DB, tc.JWTService, nil, notifier, logger, invites.Options{
		BaseURL: "http://app.test",
	})
	scanner := renewal.NewScanner(tc.DB, notifier, logger, renewal.Options{
		Now: func() time.Time { return fixedNow },
	})

	router := api.NewRouter(api.RouterConfig{
		DB:           tc.DB,
		Logger:       logger,
		AuthService:  auth.NewService(tc.DB, tc.JWTService, nil, testutil.TestKeyID),
		Cipher:       credentials.NewCipher(tc.Keyring),
		Store:        store,
		Invites:      inviteService,
		Scanner:      scanner,
		CronSecret:   testCronSecret,
		PrimaryKeyID: testutil.TestKeyID,
	})

	return &testEnv{
		TestSetup: tc,
		Router:    router,
		Store:     store,
		Invites:   inviteService,
		Logger:    logger,
	}
}

// do sends a JSON request through the full router.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}

// project creates a project in the env's workspace.
func (e *testEnv) project(t *testing.T) *models.Project {
	t.Helper()
	return testutil.CreateTestProject(t, e.DB, e.Workspace.ID, e.User.ID)
}

// outsider creates a user who belongs to another workspace only.
func (e *testEnv) outsider(t *testing.T) (*models.User, string) {
	t.Helper()
	user := testutil.CreateTestUser(t, e.DB)
	testutil.CreateTestWorkspace(t, e.DB, user)
	return user, testutil.GenerateTestToken(t, e.JWTService, user)
}

func projectPath(p *models.Project, suffix string) string {
	return "/api/projects/" + p.ID.String() + suffix
}

func workspacePath(id uuid.UUID, suffix string) string {
	return "/api/workspaces/" + id.String() + suffix
}

func auditCount(t *testing.T, e *testEnv, entityType, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(&models.AuditLog{}).
		Where("entity_type = ? AND action = ?", entityType, action).
		Count(&n).Error)
	return n
}
