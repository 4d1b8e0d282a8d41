package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/postwright/postwright/pkg/errors"
)

// Files stores generated images and returns the URL they are served at.
type Files interface {
	Save(ctx context.Context, data []byte, mimeType string) (string, error)
}

// DirFiles writes images under a directory served at URLPrefix.
type DirFiles struct {
	Dir       string
	URLPrefix string
}

var extByMIME = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Save implements Files. File names are random so URLs are unguessable.
func (f DirFiles) Save(_ context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.NewValidationError("data", "empty image")
	}
	ext, ok := extByMIME[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", errors.Wrap(errors.Mark(err, errors.ErrPersistence), "create artifacts dir")
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(f.Dir, name), data, 0o644); err != nil {
		return "", errors.Wrap(errors.Mark(err, errors.ErrPersistence), "write artifact")
	}
	prefix := strings.TrimSuffix(f.URLPrefix, "/")
	if prefix == "" {
		prefix = "/artifacts"
	}
	return fmt.Sprintf("%s/%s", prefix, name), nil
}
