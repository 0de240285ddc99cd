package blob

import (
	"context"

	infraS3 "landledger/internal/infra/blob/s3"
)

// S3Config configures the S3 / MinIO backend.
type S3Config = infraS3.Config

// NewS3 returns a store backed by the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests returns an S3 store talking to an in-process fake
// bucket.
func NewMockS3ForTests(prefix string) Store { return infraS3.NewMockForTests(prefix, 0) }
