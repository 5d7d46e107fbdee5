// Package credentials seals credential field maps with the owning
// workspace's key and opens stored rows in either of their formats.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/pkg/crypto"
)

var (
	// ErrNoKey means the workspace has no usable encryption key. Writes fail
	// closed rather than storing plaintext.
	ErrNoKey = errors.New("workspace has no encryption key")

	ErrUnknownFormat = errors.New("unknown credential format")
)

// Fields is the decrypted credential payload, e.g. {"api_key": "..."}.
type Fields map[string]any

type Cipher struct {
	keyring *crypto.Keyring
}

func NewCipher(keyring *crypto.Keyring) *Cipher {
	return &Cipher{keyring: keyring}
}

func (c *Cipher) encryptor(ws *models.Workspace) (*crypto.Encryptor, error) {
	if ws == nil || ws.EncryptionKeyID == nil || *ws.EncryptionKeyID == "" || c.keyring == nil {
		return nil, ErrNoKey
	}
	enc, err := c.keyring.Get(*ws.EncryptionKeyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKey, err)
	}
	return enc, nil
}

// Seal encrypts fields for ws and returns the stored text with its format
// version.
func (c *Cipher) Seal(ws *models.Workspace, fields Fields) (string, int, error) {
	enc, err := c.encryptor(ws)
	if err != nil {
		return "", 0, err
	}
	if fields == nil {
		fields = Fields{}
	}
	sealed, err := enc.SealJSON(fields)
	if err != nil {
		return "", 0, fmt.Errorf("sealing credentials: %w", err)
	}
	return sealed, models.CredentialFormatAge, nil
}

// Open returns the stored fields of cred, dispatching on its format version.
// Legacy rows predate encryption and are plain JSON.
func (c *Cipher) Open(ws *models.Workspace, cred *models.Credential) (Fields, error) {
	switch cred.FormatVersion {
	case models.CredentialFormatLegacyJSON:
		var fields Fields
		if err := json.Unmarshal([]byte(cred.CredentialsEncrypted), &fields); err != nil {
			return nil, fmt.Errorf("parsing legacy credentials: %w", err)
		}
		return fields, nil

	case models.CredentialFormatAge:
		enc, err := c.encryptor(ws)
		if err != nil {
			return nil, err
		}
		var fields Fields
		if err := enc.OpenJSON(cred.CredentialsEncrypted, &fields); err != nil {
			return nil, fmt.Errorf("opening credentials: %w", err)
		}
		return fields, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, cred.FormatVersion)
	}
}

// Reveal is Open for read paths: any failure becomes (nil, true) so a single
// unreadable row does not fail a listing.
func (c *Cipher) Reveal(ws *models.Workspace, cred *models.Credential) (Fields, bool) {
	fields, err := c.Open(ws, cred)
	if err != nil {
		return nil, true
	}
	return fields, false
}
