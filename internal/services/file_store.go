package services

import (
	"context"
	"io"
)

// FileStore persists uploaded files and maps stored paths to public URLs.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, dir, filename string) (path string, size int64, err error)
	Remove(path string) error
	URL(path string) string
}
