package credentials_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/credentials"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/testutil"
	"github.com/hugh/nerlude/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workspaceWithKey(id string) *models.Workspace {
	return &models.Workspace{Name: "acme", EncryptionKeyID: &id}
}

func TestCipher_RoundTrip(t *testing.T) {
	cipher := credentials.NewCipher(testutil.CreateTestKeyring(t))
	ws := workspaceWithKey(testutil.TestKeyID)

	tests := []struct {
		name   string
		fields credentials.Fields
	}{
		{"single api key", credentials.Fields{"api_key": "sk_live_123"}},
		{"several fields", credentials.Fields{"client_id": "abc", "client_secret": "s3cr3t", "region": "eu-west-1"}},
		{"nested and non-string", credentials.Fields{"port": float64(5432), "tls": true, "extra": map[string]any{"a": "b"}}},
		{"empty", credentials.Fields{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, version, err := cipher.Seal(ws, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, models.CredentialFormatAge, version)
			for _, v := range tt.fields {
				if s, ok := v.(string); ok {
					assert.NotContains(t, sealed, s)
				}
			}

			got, err := cipher.Open(ws, &models.Credential{CredentialsEncrypted: sealed, FormatVersion: version})
			require.NoError(t, err)
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestCipher_LegacyPlaintext(t *testing.T) {
	cipher := credentials.NewCipher(testutil.CreateTestKeyring(t))

	cred := &models.Credential{
		CredentialsEncrypted: `{"api_key":"legacy-value","username":"root"}`,
		FormatVersion:        models.CredentialFormatLegacyJSON,
	}

	// Legacy rows never needed a key.
	got, err := cipher.Open(&models.Workspace{}, cred)
	require.NoError(t, err)
	assert.Equal(t, credentials.Fields{"api_key": "legacy-value", "username": "root"}, got)
}

func TestCipher_FailsClosedWithoutKey(t *testing.T) {
	cipher := credentials.NewCipher(testutil.CreateTestKeyring(t))

	_, _, err := cipher.Seal(&models.Workspace{}, credentials.Fields{"api_key": "x"})
	assert.ErrorIs(t, err, credentials.ErrNoKey)

	_, _, err = cipher.Seal(workspaceWithKey("retired"), credentials.Fields{"api_key": "x"})
	assert.ErrorIs(t, err, credentials.ErrNoKey)

	_, _, err = credentials.NewCipher(nil).Seal(workspaceWithKey(testutil.TestKeyID), credentials.Fields{})
	assert.ErrorIs(t, err, credentials.ErrNoKey)
}

func TestCipher_Reveal(t *testing.T) {
	kr := testutil.CreateTestKeyring(t)
	cipher := credentials.NewCipher(kr)
	ws := workspaceWithKey(testutil.TestKeyID)

	other, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	foreign, err := other.SealJSON(map[string]string{"api_key": "x"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		cred      models.Credential
		wantError bool
	}{
		{"wrong key", models.Credential{CredentialsEncrypted: foreign, FormatVersion: models.CredentialFormatAge}, true},
		{"corrupt legacy", models.Credential{CredentialsEncrypted: "{not json", FormatVersion: models.CredentialFormatLegacyJSON}, true},
		{"unknown version", models.Credential{CredentialsEncrypted: "{}", FormatVersion: 7}, true},
		{"legacy ok", models.Credential{CredentialsEncrypted: `{"k":"v"}`, FormatVersion: models.CredentialFormatLegacyJSON}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, failed := cipher.Reveal(ws, &tt.cred)
			assert.Equal(t, tt.wantError, failed)
			if tt.wantError {
				assert.Nil(t, fields)
			}
		})
	}
}

// credentialBeforeFormatVersion is the credentials table as it existed before
// the format_version column.
type credentialBeforeFormatVersion struct {
	models.Base
	ProjectID            uuid.UUID `gorm:"type:uuid;index;not null"`
	ProjectServiceID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Environment          string    `gorm:"not null;default:'production'"`
	CredentialType       string    `gorm:"not null;default:'api_key'"`
	KeyName              string    `gorm:"not null"`
	CredentialsEncrypted string    `gorm:"type:text;not null"`
	CreatedBy            uuid.UUID `gorm:"type:uuid"`
}

func (credentialBeforeFormatVersion) TableName() string { return "credentials" }

func TestCipher_LegacyRowsSurviveMigration(t *testing.T) {
	db := testutil.OpenTestDB(t)
	require.NoError(t, db.AutoMigrate(&credentialBeforeFormatVersion{}))

	old := credentialBeforeFormatVersion{
		ProjectID:            uuid.New(),
		ProjectServiceID:     uuid.New(),
		KeyName:              "Imported",
		CredentialsEncrypted: `{"api_key":"legacy"}`,
	}
	require.NoError(t, db.Create(&old).Error)

	require.NoError(t, db.AutoMigrate(&models.Credential{}))

	var migrated models.Credential
	require.NoError(t, db.First(&migrated, "id = ?", old.ID).Error)
	assert.Equal(t, models.CredentialFormatLegacyJSON, migrated.FormatVersion)

	cipher := credentials.NewCipher(testutil.CreateTestKeyring(t))
	fields, failed := cipher.Reveal(workspaceWithKey(testutil.TestKeyID), &migrated)
	assert.False(t, failed)
	assert.Equal(t, credentials.Fields{"api_key": "legacy"}, fields)

	t.Run("zero version is stored as legacy", func(t *testing.T) {
		row := models.Credential{
			ProjectID:            uuid.New(),
			ProjectServiceID:     uuid.New(),
			KeyName:              "Plain",
			CredentialsEncrypted: `{"token":"t"}`,
			FormatVersion:        models.CredentialFormatLegacyJSON,
		}
		require.NoError(t, db.Create(&row).Error)

		var stored models.Credential
		require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
		assert.Equal(t, models.CredentialFormatLegacyJSON, stored.FormatVersion)
	})
}
