package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxUploadBytes caps a single asset upload.
const MaxUploadBytes = 10 << 20

var allowedMIMETypes = map[string]bool{}

func init() {
	for _, t := range []string{
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/webp",
		"image/svg+xml",
		"application/pdf",
		"application/json",
		"application/zip",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
		"text/csv",
		"text/markdown",
	} {
		allowedMIMETypes[t] = true
	}
}

// NormalizeMIME strips parameters such as charset and lowercases the type.
func NormalizeMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// AllowedMIME reports whether uploads of contentType are accepted.
func AllowedMIME(contentType string) bool {
	return allowedMIMETypes[NormalizeMIME(contentType)]
}

// SanitizeName reduces a client file name to a safe base and extension.
// Directory components are dropped and anything outside [A-Za-z0-9_-] in
// the base becomes an underscore.
func SanitizeName(fileName string) (base, ext string) {
	fileName = strings.ReplaceAll(fileName, "\\", "/")
	fileName = filepath.Base(fileName)

	ext = filepath.Ext(fileName)
	base = strings.TrimSuffix(fileName, ext)

	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.Trim(base, "_")
	if base == "" || base == "." {
		base = "file"
	}
	if len(base) > 100 {
		base = base[:100]
	}

	ext = strings.ToLower(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, ext))
	if ext != "" {
		ext = "." + ext
	}
	return base, ext
}

// BuildKey returns projectId/folderId/timestamp-name.ext. Assets outside a
// folder use "root" in place of the folder id.
func BuildKey(projectID uuid.UUID, folderID *uuid.UUID, fileName string, now time.Time) string {
	folder := "root"
	if folderID != nil {
		folder = folderID.String()
	}
	base, ext := SanitizeName(fileName)
	return fmt.Sprintf("%s/%s/%d-%s%s", projectID, folder, now.UnixMilli(), base, ext)
}
