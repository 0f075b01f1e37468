// Package filestore uploads and deletes project icons.
package filestore

import (
	"context"
	"io"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
)

// DefaultMaxBytes caps an icon upload when no limit is configured.
const DefaultMaxBytes int64 = 1 << 20

var (
	ErrDisabled        = apperrors.New(apperrors.KindBadRequest, "errors.project.iconStorageDisabled")
	ErrTooLarge        = apperrors.New(apperrors.KindBadRequest, "errors.project.iconTooLarge")
	ErrUnsupportedType = apperrors.New(apperrors.KindBadRequest, "errors.project.iconUnsupportedType")
)

// File is an upload request.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object identifies a stored file.
type Object struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Store is the icon storage backend.
type Store interface {
	Upload(ctx context.Context, f File) (Object, error)
	Delete(ctx context.Context, id string) error
}

var extensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Extension returns the file extension for an accepted icon content type.
func Extension(contentType string) (string, bool) {
	ext, ok := extensions[contentType]
	return ext, ok
}

// Disabled rejects uploads. It is used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, f File) (Object, error) {
	return Object{}, ErrDisabled
}

// Delete succeeds so that removing a project never depends on storage.
func (Disabled) Delete(ctx context.Context, id string) error {
	return nil
}
