// Package files resolves attendance sheet file references to punch exports
// stored under one directory.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/attendance-ledger/generic"
)

// Dir loads files by relative name from Root.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Open resolves ref inside Root. Empty, absolute and escaping references
// fail with generic.ErrInvalidFileRef; a missing file fails with
// generic.ErrEntityNotFound.
func (d *Dir) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q: %w", ref, generic.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", ref, err)
	}
	return f, nil
}

// Save stores content under a new generated reference ending in ext and
// returns that reference.
func (d *Dir) Save(ctx context.Context, ext string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("create file dir: %w", err)
	}
	ref := uuid.NewString() + ext
	path, err := d.resolve(ref)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", ref, err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %q: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", ref, err)
	}
	return ref, nil
}

func (d *Dir) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", generic.ErrInvalidFileRef)
	}
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, `\`) {
		return "", fmt.Errorf("%w: %q is absolute", generic.ErrInvalidFileRef, ref)
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the file directory", generic.ErrInvalidFileRef, ref)
	}
	return filepath.Join(d.Root, clean), nil
}
