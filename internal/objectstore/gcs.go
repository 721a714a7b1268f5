package objectstore

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

// GCSStore is backed by Google Cloud Storage using application default
// credentials.
type GCSStore struct {
	client *storage.Client
}

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "list gs://%s/%s", bucket, prefix)
		}
		objects = append(objects, fromAttrs(attrs))
	}
	return objects, nil
}

func (s *GCSStore) Stat(ctx context.Context, bucket, name string) (Object, error) {
	attrs, err := s.client.Bucket(bucket).Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{}, errors.Wrapf(ErrNotExist, "gs://%s/%s", bucket, name)
	}
	if err != nil {
		return Object{}, errors.Wrapf(err, "stat gs://%s/%s", bucket, name)
	}
	return fromAttrs(attrs), nil
}

func (s *GCSStore) Download(ctx context.Context, bucket, name, localPath string) error {
	rc, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(ErrNotExist, "gs://%s/%s", bucket, name)
	}
	if err != nil {
		return errors.Wrapf(err, "open gs://%s/%s", bucket, name)
	}
	defer rc.Close()
	return writeLocal(localPath, rc)
}

func (s *GCSStore) Upload(ctx context.Context, bucket, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.Wrapf(err, "upload gs://%s/%s", bucket, name)
	}
	return errors.Wrapf(w.Close(), "finalize gs://%s/%s", bucket, name)
}

func (s *GCSStore) Rename(ctx context.Context, bucket, from, to string) error {
	b := s.client.Bucket(bucket)
	src := b.Object(from)
	if _, err := b.Object(to).CopierFrom(src).Run(ctx); err != nil {
		return errors.Wrapf(err, "copy gs://%s/%s to %s", bucket, from, to)
	}
	return errors.Wrapf(src.Delete(ctx), "delete gs://%s/%s", bucket, from)
}

func (s *GCSStore) URI(bucket, name string) string {
	return "gs://" + bucket + "/" + name
}

func fromAttrs(attrs *storage.ObjectAttrs) Object {
	return Object{Bucket: attrs.Bucket, Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated}
}
