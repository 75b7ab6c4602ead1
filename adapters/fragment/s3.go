package fragment

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/artpar/samgate/core/template"
)

// maxFragmentSize bounds how much of an object is read as a fragment.
const maxFragmentSize = 10 << 20 // 10MB

// S3Options holds settings for the object storage backend.
type S3Options struct {
	// Region overrides the region from the environment.
	Region string

	// Endpoint points the client at a custom endpoint, for local stacks.
	// Path-style addressing is enabled when set.
	Endpoint string
}

// S3Loader reads fragments from object storage. The client is built on
// first use so deployments that never reference objects skip credential
// loading entirely.
type S3Loader struct {
	opts S3Options

	mu     sync.Mutex
	client *s3.Client
}

// NewS3Loader creates an object storage loader.
func NewS3Loader(opts S3Options) *S3Loader {
	return &S3Loader{opts: opts}
}

// Load fetches and parses the fragment at an s3://bucket/key location.
func (l *S3Loader) Load(ctx context.Context, location string) (*template.Node, error) {
	bucket, key, err := splitObjectURL(location)
	if err != nil {
		return nil, err
	}

	client, err := l.clientFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxFragmentSize))
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}

	node, err := template.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", location, err)
	}
	return node, nil
}

func (l *S3Loader) clientFor(ctx context.Context) (*s3.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if l.opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(l.opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	l.client = s3.NewFromConfig(cfg, func(options *s3.Options) {
		if l.opts.Endpoint != "" {
			options.BaseEndpoint = aws.String(l.opts.Endpoint)
			options.UsePathStyle = true
		}
	})
	return l.client, nil
}

// splitObjectURL splits an s3://bucket/key location into its parts.
func splitObjectURL(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an object URL: %q", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("object URL %q must name a bucket and key", location)
	}
	return bucket, key, nil
}

// Ensure interface compliance.
var _ template.FragmentLoader = (*S3Loader)(nil)
