// Package storage writes rendered reports to a local path or an S3 object.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Open resolves an --output target to a store and the key to write.
// "s3://bucket/key" selects S3; anything else is a local file path.
func Open(target string, cfg aws.Config) (BlobStore, string, error) {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return nil, "", fmt.Errorf("invalid s3 target %q: want s3://bucket/key", target)
		}
		return NewS3Store(cfg, bucket), key, nil
	}
	if target == "" {
		return nil, "", fmt.Errorf("empty output target")
	}
	return NewLocalStore(filepath.Dir(target)), filepath.Base(target), nil
}
