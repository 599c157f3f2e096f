// Package archive copies run artifacts (point cloud, processing report,
// marker file) to a blob bucket for long-term storage. Buckets are opened
// from URLs so the same command works against local directories and S3.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

// Store copies files into a bucket under a per-project prefix.
type Store struct {
	bucketURL string
	logger    *slog.Logger
}

// NewStore creates a Store for the given bucket URL (file:///path,
// s3://bucket, ...).
func NewStore(bucketURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{bucketURL: bucketURL, logger: logger}
}

// Put uploads one local file under prefix, keyed by its base name.
// Missing files are reported as errors; archiving half a run silently is
// worse than failing.
func (s *Store) Put(ctx context.Context, bucket *blob.Bucket, prefix, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	key := prefix + "/" + filepath.Base(path)
	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("failed to create writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}

	s.logger.Info("archived artifact", "key", key)
	return nil
}

// Archive uploads all files under prefix. The bucket is opened and closed
// per call; see the gocloud docs on why sharing bucket handles across
// callers is not worth it.
func (s *Store) Archive(ctx context.Context, prefix string, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("nothing to archive")
	}

	bucket, err := blob.OpenBucket(ctx, s.bucketURL)
	if err != nil {
		return fmt.Errorf("failed to open bucket %s: %w", s.bucketURL, err)
	}
	defer bucket.Close()

	for _, path := range paths {
		if err := s.Put(ctx, bucket, prefix, path); err != nil {
			return err
		}
	}
	return nil
}
