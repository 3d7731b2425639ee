package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

// NewScratchBucket opens an in-memory bucket holding the working copies for
// exactly one batch run: corrected images, the staged KML document. Callers
// own the bucket and must close it on every exit path.
//
// Don't be tempted to share one scratch bucket between runs. Closing it
// invalidates every handle still pointing at it, so scope one per batch and
// let it go.
func NewScratchBucket(ctx context.Context) (*blob.Bucket, error) {

	bucket, err := blob.OpenBucket(ctx, "mem://")

	if err != nil {
		return nil, fmt.Errorf("Failed to open scratch bucket, %w", err)
	}

	return bucket, nil
}

// CloseScratchBucket empties and closes a scratch bucket. Deletion failures
// are logged rather than returned; by the time this runs the batch outcome
// is already decided.
func CloseScratchBucket(ctx context.Context, bucket *blob.Bucket) {

	iter := bucket.List(nil)

	for {
		obj, err := iter.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			slog.Warn("Failed to list scratch bucket for cleanup", "error", err)
			break
		}

		err = bucket.Delete(ctx, obj.Key)

		if err != nil {
			slog.Warn("Failed to remove scratch entry", "key", obj.Key, "error", err)
		}
	}

	err := bucket.Close()

	if err != nil {
		slog.Warn("Failed to close scratch bucket", "error", err)
	}
}
