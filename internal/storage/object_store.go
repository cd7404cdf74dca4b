package storage

import (
	"context"
	"io"
)

// ObjectStore is a destination for collected result folders. UploadDir replaces
// whatever is stored under bucket/prefix with the contents of src.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	DeleteObjects(ctx context.Context, bucket, prefix string) error

	UploadDir(ctx context.Context, bucket, prefix, src string) error

	Location(bucket, prefix string) string
}
