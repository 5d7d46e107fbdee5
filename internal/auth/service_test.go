package auth_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*auth.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return auth.NewRedisSessionStore(client), mr
}

func TestService_Register(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := auth.NewService(db, testutil.CreateTestJWTService(), nil, "key-2026")
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "  Founder@Example.com ",
		Password: "supersecret",
		Name:     "Founder",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "founder@example.com", resp.User.Email)
	require.NotNil(t, resp.Workspace)
	assert.Equal(t, "Founder's Workspace", resp.Workspace.Name)
	require.NotNil(t, resp.Workspace.EncryptionKeyID)
	assert.Equal(t, "key-2026", *resp.Workspace.EncryptionKeyID)

	var member models.WorkspaceMember
	require.NoError(t, db.Where("workspace_id = ? AND user_id = ?", resp.Workspace.ID, resp.User.ID).First(&member).Error)
	assert.Equal(t, models.RoleOwner, member.Role)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{
			Email:    "founder@EXAMPLE.com",
			Password: "supersecret",
			Name:     "Someone",
		})
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	t.Run("custom workspace name", func(t *testing.T) {
		resp, err := svc.Register(ctx, auth.RegisterInput{
			Email:         "second@example.com",
			Password:      "supersecret",
			Name:          "Second",
			WorkspaceName: "Side Project Co",
		})
		require.NoError(t, err)
		assert.Equal(t, "Side Project Co", resp.Workspace.Name)
		assert.Contains(t, resp.Workspace.Slug, "side-project-co-")
	})
}

func TestService_Login(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	svc := auth.NewService(tc.DB, tc.JWTService, nil, testutil.TestKeyID)
	ctx := testutil.TestContext(t)

	resp, err := svc.Login(ctx, auth.LoginInput{Email: tc.User.Email, Password: "testpassword123"})
	require.NoError(t, err)
	assert.Equal(t, tc.User.ID, resp.User.ID)

	claims, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, tc.User.ID, claims.UserID)

	_, err = svc.Login(ctx, auth.LoginInput{Email: tc.User.Email, Password: "nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "ghost@example.com", Password: "testpassword123"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, tc.DB.Model(tc.User).Update("is_active", false).Error)
	_, err = svc.Login(ctx, auth.LoginInput{Email: tc.User.Email, Password: "testpassword123"})
	assert.ErrorIs(t, err, auth.ErrInactiveUser)
}

func TestService_LogoutRevokesSession(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	store, mr := newRedisStore(t)
	svc := auth.NewService(tc.DB, tc.JWTService, store, testutil.TestKeyID)
	ctx := testutil.TestContext(t)

	claims, err := svc.Authenticate(ctx, tc.Token)
	require.NoError(t, err)

	other := testutil.GenerateTestToken(t, tc.JWTService, tc.User)

	require.NoError(t, svc.Logout(ctx, claims))
	assert.True(t, mr.Exists("session:revoked:"+claims.ID))

	ttl := mr.TTL("session:revoked:" + claims.ID)
	assert.Greater(t, ttl, 23*time.Hour)
	assert.LessOrEqual(t, ttl, 24*time.Hour)

	_, err = svc.Authenticate(ctx, tc.Token)
	assert.ErrorIs(t, err, auth.ErrSessionRevoked)

	// Other sessions of the same user stay valid.
	_, err = svc.Authenticate(ctx, other)
	assert.NoError(t, err)
}

func TestService_LogoutWithoutSessionStore(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := testutil.TestContext(t)

	store, _ := newRedisStore(t)
	assert.True(t, auth.NewService(tc.DB, tc.JWTService, store, testutil.TestKeyID).RevokesSessions())

	svc := auth.NewService(tc.DB, tc.JWTService, nil, testutil.TestKeyID)
	assert.False(t, svc.RevokesSessions())

	claims, err := svc.Authenticate(ctx, tc.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims))

	// The token stays valid until it expires.
	_, err = svc.Authenticate(ctx, tc.Token)
	assert.NoError(t, err)
}

func TestService_AuthenticateWhenRedisDown(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	store, mr := newRedisStore(t)
	svc := auth.NewService(tc.DB, tc.JWTService, store, testutil.TestKeyID)

	mr.Close()

	claims, err := svc.Authenticate(testutil.TestContext(t), tc.Token)
	require.NoError(t, err)
	assert.Equal(t, tc.User.ID, claims.UserID)
}

func TestService_GetUserByID(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	svc := auth.NewService(tc.DB, tc.JWTService, nil, "")

	user, err := svc.GetUserByID(testutil.TestContext(t), tc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, tc.User.Email, user.Email)

	_, err = svc.GetUserByID(testutil.TestContext(t), models.Base{}.ID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
