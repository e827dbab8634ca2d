package blob

import (
	"context"

	"echocore/internal/infra/blob/fs"
	memorystore "echocore/internal/infra/blob/memory"
	s3store "echocore/internal/infra/blob/s3"
)

// S3Config re-exports the S3 driver configuration.
type S3Config = s3store.Config

// NewFilesystem returns a filesystem-backed Store rooted at path.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3-backed Store from explicit configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// OpenS3FromEnv returns an S3-backed Store configured from the environment.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	return s3store.OpenFromEnv(ctx)
}

// NewMockS3ForTests returns the S3 store over its in-memory fake
// transport, for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
