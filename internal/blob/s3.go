package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"subtree-go/internal/subtree"
)

// S3Store keeps blobs as objects in an S3 bucket, optionally under a key
// prefix so one bucket can serve several deployments.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ subtree.BlobStore = (*S3Store)(nil)

// NewS3Store builds a store from the ambient AWS configuration (environment,
// shared config files, instance roles). An endpoint override supports
// S3-compatible services like MinIO.
func NewS3Store(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) Adopt(key string, srcPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	n, err := s.Put(key, src)
	src.Close()
	if err != nil {
		return 0, err
	}
	if err := os.Remove(srcPath); err != nil {
		return 0, fmt.Errorf("removing source after upload: %w", err)
	}
	return n, nil
}

func (s *S3Store) Put(key string, r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	_, err := s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   cr,
	})
	if err != nil {
		return 0, fmt.Errorf("uploading blob %s: %w", key, err)
	}
	return cr.n, nil
}

func (s *S3Store) Open(key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Exists(key string) (bool, error) {
	_, err := s.head(key)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking blob %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) Size(key string) (int64, error) {
	out, err := s.head(key)
	if err != nil {
		return 0, fmt.Errorf("sizing blob %s: %w", key, err)
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("blob %s: no content length in response", key)
	}
	return *out.ContentLength, nil
}

func (s *S3Store) Remove(key string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) head(key string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nk)
}
