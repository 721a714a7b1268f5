// Package objectstore abstracts the bucket storage source files, schemas and
// queries are read from and corrected files are written to.
package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ErrNotExist is returned by Stat for missing objects.
var ErrNotExist = errors.New("object does not exist")

type Object struct {
	Bucket  string
	Name    string
	Size    int64
	Updated time.Time
}

// Store is safe for concurrent use by independent jobs.
type Store interface {
	// List returns every object whose name starts with prefix.
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Stat(ctx context.Context, bucket, name string) (Object, error)
	Download(ctx context.Context, bucket, name, localPath string) error
	Upload(ctx context.Context, bucket, localPath, name string) error
	// Rename moves an object within a bucket.
	Rename(ctx context.Context, bucket, from, to string) error
	// URI is the address other services use for the object.
	URI(bucket, name string) string
}

// writeLocal streams r into localPath, creating parent directories.
func writeLocal(localPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", localPath)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", localPath)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", localPath)
	}
	return errors.Wrapf(f.Close(), "close %s", localPath)
}
