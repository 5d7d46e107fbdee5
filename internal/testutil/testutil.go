package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/pkg/crypto"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestKeyID is the keyring id assigned to workspaces created by fixtures.
const TestKeyID = "test-key"

// SetupTestDB creates an in-memory SQLite database with every model migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := OpenTestDB(t)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// OpenTestDB creates an empty in-memory SQLite database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Each connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db
}

// CreateTestKeyring returns a keyring holding one freshly generated key
// under TestKeyID.
func CreateTestKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	kr := crypto.NewKeyring()
	if err := kr.Add(TestKeyID, enc); err != nil {
		t.Fatalf("failed to add key: %v", err)
	}
	if err := kr.SetPrimary(TestKeyID); err != nil {
		t.Fatalf("failed to set primary key: %v", err)
	}
	return kr
}

// CreateTestUser creates an active user with password "testpassword123".
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestWorkspace creates a workspace owned by owner and keyed with TestKeyID.
func CreateTestWorkspace(t *testing.T, db *gorm.DB, owner *models.User) *models.Workspace {
	t.Helper()

	keyID := TestKeyID
	ws := &models.Workspace{
		Name:            "Test Workspace",
		Plan:            "free",
		EncryptionKeyID: &keyID,
		CreatedBy:       owner.ID,
	}
	if err := database.CreateWorkspace(db, ws); err != nil {
		t.Fatalf("failed to create test workspace: %v", err)
	}
	return ws
}

// AddWorkspaceMember adds user to the workspace with role.
func AddWorkspaceMember(t *testing.T, db *gorm.DB, workspaceID, userID uuid.UUID, role models.Role) {
	t.Helper()

	m := models.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("failed to add workspace member: %v", err)
	}
}

// AddProjectMember adds user directly to a project with role.
func AddProjectMember(t *testing.T, db *gorm.DB, projectID, userID uuid.UUID, role models.Role) {
	t.Helper()

	m := models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("failed to add project member: %v", err)
	}
}

// CreateTestProject creates an active project in the workspace.
func CreateTestProject(t *testing.T, db *gorm.DB, workspaceID, createdBy uuid.UUID) *models.Project {
	t.Helper()

	project := &models.Project{
		WorkspaceID: workspaceID,
		Name:        "Test Project " + uuid.New().String()[:4],
		Status:      models.ProjectStatusActive,
		CreatedBy:   createdBy,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

// CreateTestService creates an active monthly service. renewal may be nil.
func CreateTestService(t *testing.T, db *gorm.DB, projectID uuid.UUID, name string, renewal *time.Time) *models.Service {
	t.Helper()

	svc := &models.Service{
		ProjectID:     projectID,
		Name:          name,
		Category:      "hosting",
		CostAmount:    decimal.RequireFromString("20.00"),
		CostFrequency: models.CostMonthly,
		CostCurrency:  "USD",
		RenewalDate:   renewal,
		Status:        models.ServiceStatusActive,
	}
	if err := db.Create(svc).Error; err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return svc
}

// Date returns a pointer to UTC midnight of the given calendar day.
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid session token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates a JSON HTTP request with a bearer token
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// MultipartFile describes the file part of an upload request.
type MultipartFile struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// MultipartRequest builds an authenticated multipart/form-data request.
func MultipartRequest(t *testing.T, path string, fields map[string]string, file *MultipartFile, token string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.Field+`"; filename="`+file.FileName+`"`)
		h.Set("Content-Type", file.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			t.Fatalf("failed to write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Keyring    *crypto.Keyring
	Workspace  *models.Workspace
	User       *models.User
	Token      string
}

// NewTestContext creates a DB, a keyring, an owner user with a workspace,
// and a session token for that user.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, db)
	ws := CreateTestWorkspace(t, db, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Keyring:    CreateTestKeyring(t),
		Workspace:  ws,
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
	}
}

// NewUserWithRole creates another user, adds them to the setup's workspace
// with role (skipped when role is empty) and returns them with a token.
func (ts *TestSetup) NewUserWithRole(t *testing.T, role models.Role) (*models.User, string) {
	t.Helper()

	user := CreateTestUser(t, ts.DB)
	if role != "" {
		AddWorkspaceMember(t, ts.DB, ts.Workspace.ID, user.ID, role)
	}
	return user, GenerateTestToken(t, ts.JWTService, user)
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
