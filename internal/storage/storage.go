// Package storage holds uploaded inputs on local disk for the length of a
// request and optionally mirrors generated videos to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary uploads and the optional
// object storage mirror.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name is used as a hint; its extension is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
