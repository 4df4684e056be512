package base

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

// FileSchema reads a local file on every fetch.
type FileSchema struct {
	path string
}

// NewFileSchema reads clean_location, falling back to location.
func NewFileSchema(opts config.Options, _ plugin.Dependencies) (plugin.Schema, error) {
	location, err := opts.String("clean_location", "")
	if err != nil {
		return nil, err
	}
	if location == "" {
		if location, err = opts.String("location", ""); err != nil {
			return nil, err
		}
	}
	if location == "" {
		return nil, config.Errorf("file schema", "missing required config attributes: [location]")
	}
	path, err := config.ExpandPath(location)
	if err != nil {
		return nil, err
	}
	return &FileSchema{path: filepath.Clean(path)}, nil
}

func (s *FileSchema) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileSchema) Path() string {
	return s.path
}
