package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "p/root/1-logo.png", strings.NewReader("png-bytes"), 9, "image/png"))
	assert.True(t, store.Has("p/root/1-logo.png"))
	assert.Equal(t, 1, store.Len())

	rc, err := store.Get(ctx, "p/root/1-logo.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "p/root/1-logo.png"))
	_, err = store.Get(ctx, "p/root/1-logo.png")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), &config.StorageConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = New(context.Background(), &config.StorageConfig{Backend: "ftp"}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), &config.StorageConfig{Backend: "s3"}, nil)
	assert.Error(t, err, "bucket is required")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		wantBase string
		wantExt  string
	}{
		{"logo.png", "logo", ".png"},
		{"Brand Guide v2.PDF", "Brand_Guide_v2", ".pdf"},
		{"../../etc/passwd", "passwd", ""},
		{"..\\..\\windows\\evil.exe", "evil", ".exe"},
		{"résumé.docx", "r_sum", ".docx"},
		{".env", "file", ".env"},
		{"", "file", ""},
		{"weird.t?x!t", "weird", ".txt"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			base, ext := SanitizeName(tt.input)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantExt, ext)
			assert.NotContains(t, base, "/")
			assert.NotContains(t, base, "..")
		})
	}
}

func TestBuildKey(t *testing.T) {
	projectID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	folderID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	now := time.UnixMilli(1760000000000)

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/1760000000000-Q3_invoice.pdf",
		BuildKey(projectID, &folderID, "Q3 invoice.pdf", now),
	)
	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/root/1760000000000-logo.png",
		BuildKey(projectID, nil, "../logo.png", now),
	)
}

func TestAllowedMIME(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"application/pdf", true},
		{"text/plain; charset=utf-8", true},
		{"IMAGE/JPEG", true},
		{"application/x-msdownload", false},
		{"text/html", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedMIME(tt.contentType))
		})
	}
}
