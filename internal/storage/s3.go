package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cdl-sync/internal/cdl"
)

// S3Opener opens S3 stores with the session credentials issued by the data lake.
type S3Opener struct {
	Region string

	// Endpoint overrides the S3 endpoint, e.g. for an S3-compatible gateway.
	Endpoint     string
	UsePathStyle bool
}

var _ cdl.StoreOpener = (*S3Opener)(nil)

// Open builds an S3 client authenticated with cred and scoped to its bucket.
func (o *S3Opener) Open(ctx context.Context, cred *cdl.StorageCredential) (cdl.ObjectStore, error) {
	bucket, _, err := cred.Location()
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(o.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cred.AccessKey,
			cred.SecretKey,
			cred.SessionToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
		opts.UsePathStyle = o.UsePathStyle
	})

	return NewS3Store(client, bucket), nil
}

// S3Store reads objects from a single bucket.
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
}

var _ cdl.ObjectStore = (*S3Store)(nil)

func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
	}
}

// ListKeys returns every key under prefix, following continuation tokens.
func (s *S3Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Download writes the object at key to destPath.
func (s *S3Store) Download(ctx context.Context, key string, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.bucket, key)
		}
		return fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
