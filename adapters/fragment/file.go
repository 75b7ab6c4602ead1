package fragment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/samgate/core/template"
)

// FileLoader reads fragments from the local file system. Relative locations
// resolve against the configured root, normally the directory holding the
// template that references them.
type FileLoader struct {
	root string
}

// NewFileLoader creates a loader rooted at root. An empty root means the
// current directory.
func NewFileLoader(root string) *FileLoader {
	if root == "" {
		root = "."
	}
	return &FileLoader{root: root}
}

// Load reads and parses the fragment at location.
func (l *FileLoader) Load(ctx context.Context, location string) (*template.Node, error) {
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}

	node, err := template.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}
	return node, nil
}

// Ensure interface compliance.
var _ template.FragmentLoader = (*FileLoader)(nil)
