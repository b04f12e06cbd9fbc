package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ecomdw/etl/internal/domain/shared"
)

// Source opens dataset files by file name. A file that does not exist is
// reported with an error wrapping shared.ErrNotFound.
type Source interface {
	Open(ctx context.Context, file string) (io.ReadCloser, error)
	// Location describes where a file is read from, for logs and errors
	Location(file string) string
}

// DirSource reads dataset files from a local directory
type DirSource struct {
	dir string
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Check verifies that the directory exists
func (s *DirSource) Check() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: data directory %s", shared.ErrNotFound, s.dir)
		}
		return fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", s.dir)
	}
	return nil
}

// Open implements Source
func (s *DirSource) Open(ctx context.Context, file string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Location(file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, s.Location(file))
		}
		return nil, err
	}
	return f, nil
}

// Location implements Source
func (s *DirSource) Location(file string) string {
	return filepath.Join(s.dir, file)
}
