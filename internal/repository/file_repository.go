package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"

	"github.com/lewtec/sinalizador/internal/domain"
)

// FileRepository stores each dataset as <name>.json on a billy filesystem.
// This is the layout older installs already have on disk (users.json and
// annotations.json).
type FileRepository struct {
	fs billy.Filesystem
}

// NewFileRepository creates a FileRepository on top of fs
func NewFileRepository(fs billy.Filesystem) *FileRepository {
	return &FileRepository{fs: fs}
}

// OpenFileRepository creates a FileRepository rooted at dir, creating dir if needed
func OpenFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("while creating outputs directory '%s': %w", dir, err)
	}
	return NewFileRepository(osfs.New(dir)), nil
}

func datasetFilename(name string) string {
	return name + ".json"
}

// Load reads <name>.json, returning nil if the file does not exist
func (r *FileRepository) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := r.fs.Open(datasetFilename(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("while opening dataset '%s': %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("while reading dataset '%s': %w", name, err)
	}
	return data, nil
}

// Save truncates and rewrites <name>.json. The write is not atomic, a crash
// halfway through leaves a partial file behind.
func (r *FileRepository) Save(ctx context.Context, name string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := r.fs.OpenFile(datasetFilename(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("while opening dataset '%s' for writing: %w", name, err)
	}
	if _, err := f.Write(doc); err != nil {
		f.Close()
		return fmt.Errorf("while writing dataset '%s': %w", name, err)
	}
	return f.Close()
}

func (r *FileRepository) Close() error {
	return nil
}

var _ domain.DatasetRepository = (*FileRepository)(nil)
