package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"filippo.io/age"
)

// Encryptor seals and opens data for a single age X25519 identity.
type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor parses an AGE-SECRET-KEY string. An empty key yields a
// fresh throwaway identity.
func NewEncryptor(key string) (*Encryptor, error) {
	if key == "" {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
		return &Encryptor{identity: identity, recipient: identity.Recipient()}, nil
	}

	identity, err := age.ParseX25519Identity(key)
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return &Encryptor{identity: identity, recipient: identity.Recipient()}, nil
}

// GenerateKey returns a new AGE-SECRET-KEY string for ENCRYPTION_KEYS.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

// Encrypt encrypts plaintext data and returns the ciphertext
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing encryptor: %w", err)
	}

	return buf.Bytes(), nil
}

// Decrypt decrypts ciphertext and returns the plaintext
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}

	return plaintext, nil
}

// SealString encrypts plaintext and returns base64 ciphertext, the form
// stored in text columns.
func (e *Encryptor) SealString(plaintext string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *Encryptor) OpenString(sealed string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}

	plaintext, err := e.Decrypt(decoded)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SealJSON marshals v and seals the result.
func (e *Encryptor) SealJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	return e.SealString(string(raw))
}

// OpenJSON reverses SealJSON into v.
func (e *Encryptor) OpenJSON(sealed string, v any) error {
	plaintext, err := e.OpenString(sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), v); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}
	return nil
}
