package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSource reads artifacts from the local filesystem.
// Names are resolved relative to Dir unless absolute.
type FileSource struct {
	Dir string
}

// NewFileSource creates a file artifact source rooted at dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Fetch reads an artifact file
func (s *FileSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Location(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Location returns the resolved path of an artifact
func (s *FileSource) Location(name string) string {
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}
