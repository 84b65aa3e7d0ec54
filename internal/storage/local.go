package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPath = errors.New("storage: invalid path")

// Local keeps uploads on disk under Root and serves them from BaseURL.
type Local struct {
	Root    string
	BaseURL string // e.g. "http://localhost:8080/media"
}

func NewLocal(root, baseURL string) *Local {
	return &Local{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Save writes r to <Root>/<dir>/<uuid><ext> and returns the path relative to Root.
func (l *Local) Save(ctx context.Context, r io.Reader, dir, filename string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	dir = filepath.Base(strings.TrimSpace(dir))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return "", 0, ErrInvalidPath
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))

	rel := path.Join(dir, uuid.NewString()+ext)
	abs := filepath.Join(l.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", 0, fmt.Errorf("storage mkdir: %w", err)
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("storage create: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		return "", 0, fmt.Errorf("storage write: %w", err)
	}
	return rel, n, nil
}

// Remove deletes a stored file. Removing a missing file is not an error.
func (l *Local) Remove(rel string) error {
	abs, err := l.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage remove: %w", err)
	}
	return nil
}

func (l *Local) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return l.BaseURL + "/" + strings.TrimLeft(rel, "/")
}

// resolve maps a relative path into Root, rejecting anything that escapes it.
func (l *Local) resolve(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.Root, filepath.FromSlash(clean)), nil
}
