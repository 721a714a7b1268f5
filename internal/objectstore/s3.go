package objectstore

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

type S3Options struct {
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO or LocalStack
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// S3Store is backed by Amazon S3 or an S3-compatible service.
type S3Store struct {
	client *s3.Client
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}

	// Override credentials if provided
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return &S3Store{client: client}, nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	var objects []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list s3://%s/%s", bucket, prefix)
		}
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Bucket:  bucket,
				Name:    aws.ToString(o.Key),
				Size:    aws.ToInt64(o.Size),
				Updated: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}

func (s *S3Store) Stat(ctx context.Context, bucket, name string) (Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return Object{}, errors.Wrapf(ErrNotExist, "s3://%s/%s", bucket, name)
		}
		return Object{}, errors.Wrapf(err, "stat s3://%s/%s", bucket, name)
	}
	return Object{
		Bucket:  bucket,
		Name:    name,
		Size:    aws.ToInt64(out.ContentLength),
		Updated: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) Download(ctx context.Context, bucket, name, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return errors.Wrapf(ErrNotExist, "s3://%s/%s", bucket, name)
		}
		return errors.Wrapf(err, "get s3://%s/%s", bucket, name)
	}
	defer out.Body.Close()
	return writeLocal(localPath, out.Body)
}

func (s *S3Store) Upload(ctx context.Context, bucket, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
		Body:   f,
	})
	return errors.Wrapf(err, "put s3://%s/%s", bucket, name)
}

func (s *S3Store) Rename(ctx context.Context, bucket, from, to string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(copySource(bucket, from)),
		Key:        aws.String(to),
	})
	if err != nil {
		return errors.Wrapf(err, "copy s3://%s/%s to %s", bucket, from, to)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(from),
	})
	return errors.Wrapf(err, "delete s3://%s/%s", bucket, from)
}

func (s *S3Store) URI(bucket, name string) string {
	return "s3://" + bucket + "/" + name
}

// copySource builds the URL-encoded "bucket/key" value CopyObject expects.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
