package objectstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore keeps buckets as directories below Root. Object names use "/"
// separators regardless of the host OS.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create local store root %s", root)
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) path(bucket, name string) string {
	return filepath.Join(s.Root, bucket, filepath.FromSlash(name))
}

func (s *LocalStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	base := filepath.Join(s.Root, bucket)
	var objects []Object
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == base {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Bucket: bucket, Name: name, Size: info.Size(), Updated: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s/%s", bucket, prefix)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *LocalStore) Stat(_ context.Context, bucket, name string) (Object, error) {
	info, err := os.Stat(s.path(bucket, name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return Object{}, errors.Wrapf(ErrNotExist, "%s/%s", bucket, name)
	}
	if err != nil {
		return Object{}, errors.Wrapf(err, "stat %s/%s", bucket, name)
	}
	return Object{Bucket: bucket, Name: name, Size: info.Size(), Updated: info.ModTime()}, nil
}

func (s *LocalStore) Download(_ context.Context, bucket, name, localPath string) error {
	f, err := os.Open(s.path(bucket, name))
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(ErrNotExist, "%s/%s", bucket, name)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s/%s", bucket, name)
	}
	defer f.Close()
	return writeLocal(localPath, f)
}

func (s *LocalStore) Upload(_ context.Context, bucket, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()
	return writeLocal(s.path(bucket, name), f)
}

func (s *LocalStore) Rename(_ context.Context, bucket, from, to string) error {
	dst := s.path(bucket, to)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", to)
	}
	return errors.Wrapf(os.Rename(s.path(bucket, from), dst), "rename %s to %s", from, to)
}

func (s *LocalStore) URI(bucket, name string) string {
	return "file://" + filepath.ToSlash(s.path(bucket, name))
}
