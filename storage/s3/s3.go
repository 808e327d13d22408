// Package s3 keeps objects in an Amazon S3 bucket or an S3-compatible
// service such as MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/kbukum/pilgi/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(cfg storage.Config) (storage.Storage, error) {
		return Open(context.Background(), cfg)
	})
}

var _ storage.Storage = (*Bucket)(nil)

// Bucket is a storage.Storage over one bucket. Keys map to object keys
// unchanged.
type Bucket struct {
	api  *awss3.Client
	name string
}

// Open resolves AWS credentials and builds a client for cfg.Bucket. Static
// keys in cfg take precedence over the default credential chain.
func Open(ctx context.Context, cfg storage.Config) (*Bucket, error) {
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		load = append(load, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}
	return New(awss3.NewFromConfig(awsCfg, addressing(cfg)), cfg.Bucket), nil
}

// New uses an existing client.
func New(api *awss3.Client, bucket string) *Bucket {
	return &Bucket{api: api, name: bucket}
}

// addressing points the client at a custom endpoint. Custom endpoints and
// ForcePathStyle use path-style URLs, which MinIO requires.
func addressing(cfg storage.Config) func(*awss3.Options) {
	return func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Endpoint != "" || cfg.ForcePathStyle
	}
}

func (b *Bucket) Upload(ctx context.Context, key string, r io.Reader) error {
	in := &awss3.PutObjectInput{Bucket: &b.name, Key: &key, Body: r}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		in.ContentType = &ct
	}
	if _, err := b.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: &b.name, Key: &key})
	switch {
	case missing(err):
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete succeeds for keys that do not exist.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.api.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &b.name, Key: &key})
	if err != nil && !missing(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &b.name, Key: &key})
	switch {
	case missing(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}
	return true, nil
}

// List pages through every object under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	pages := awss3.NewListObjectsV2Paginator(b.api, &awss3.ListObjectsV2Input{Bucket: &b.name, Prefix: &prefix})
	var files []storage.FileInfo
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			files = append(files, storage.FileInfo{
				Path:         aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return files, nil
}

// missing reports the S3 error codes for an absent key. HEAD responses
// carry no body, so they surface as a bare NotFound.
func missing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
