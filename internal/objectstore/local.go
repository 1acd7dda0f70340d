package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// LocalBucket is the bucket name reported by LocalStore.
const LocalBucket = "local"

// LocalStore copies artifacts under a root directory. It backs offline runs
// of the CLI.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Bucket returns LocalBucket.
func (s *LocalStore) Bucket() string {
	return LocalBucket
}

// Path returns the filesystem location of a key.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Upload copies localPath to root/key.
func (s *LocalStore) Upload(ctx context.Context, key, localPath string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return Object{}, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer src.Close()

	dst := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return Object{}, fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return Object{Bucket: LocalBucket, Key: key}, nil
}

// PresignGet returns a file URL. Local files do not expire.
func (s *LocalStore) PresignGet(_ context.Context, obj Object, _ time.Duration) (string, error) {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.Path(obj.Key))}
	return u.String(), nil
}
