// Package fragment loads external template fragments: the documents pulled
// in by transform includes and by api definition locations. A location is
// either an s3://bucket/key object reference or a file path resolved
// against a local root.
package fragment

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/samgate/core/template"
)

// Loader dispatches fragment locations to the file or object backend.
type Loader struct {
	file *FileLoader
	s3   *S3Loader
}

// NewLoader creates a dispatching loader. The object backend may be nil;
// object locations then fail with a configuration error.
func NewLoader(file *FileLoader, s3 *S3Loader) *Loader {
	return &Loader{file: file, s3: s3}
}

// Load fetches and parses the fragment at location.
func (l *Loader) Load(ctx context.Context, location string) (*template.Node, error) {
	if strings.HasPrefix(location, "s3://") {
		if l.s3 == nil {
			return nil, fmt.Errorf("fragment %q: object storage is not configured", location)
		}
		return l.s3.Load(ctx, location)
	}
	return l.file.Load(ctx, location)
}

// Ensure interface compliance.
var _ template.FragmentLoader = (*Loader)(nil)
