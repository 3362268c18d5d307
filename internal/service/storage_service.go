package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/util"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/aws/aws-sdk-go-v2/aws"
	s3Config "github.com/aws/aws-sdk-go-v2/config"
	s3Credentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider stores file bytes under slash-separated keys
// ("evidence/12/<id>.pdf"). Missing keys surface as util.ErrFileNotFound.
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

// ObjectKey joins a folder path and file name into a storage key.
func ObjectKey(folder, name string) string {
	return strings.TrimSuffix(folder, "/") + "/" + name
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) path(key string) string {
	return filepath.Join(p.Config.LocalPath, filepath.FromSlash(cleanKey(key)))
}

// Upload writes through a temporary sibling and renames it into place, so a
// cancelled or failed copy never leaves a partial file under the key.
func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := p.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	tmp := out.Name()

	_, err = io.Copy(out, &ctxReader{ctx: ctx, r: reader})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp, 0644)
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}

	return p.GetURL(key), nil
}

func (p *LocalStorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, util.ErrFileNotFound
	}
	return f, err
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return util.ErrFileNotFound
	}
	return err
}

// ctxReader stops a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func (p *LocalStorageProvider) GetURL(key string) string {
	return "/uploads/" + cleanKey(key)
}

type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
	}

	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func minioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, cleanKey(key), reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := p.Client.StatObject(ctx, p.Config.MinioBucket, cleanKey(key), minio.StatObjectOptions{}); err != nil {
		if minioNotFound(err) {
			return nil, util.ErrFileNotFound
		}
		return nil, err
	}
	return p.Client.GetObject(ctx, p.Config.MinioBucket, cleanKey(key), minio.GetObjectOptions{})
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	if _, err := p.Client.StatObject(ctx, p.Config.MinioBucket, cleanKey(key), minio.StatObjectOptions{}); err != nil {
		if minioNotFound(err) {
			return util.ErrFileNotFound
		}
		return err
	}
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, cleanKey(key), minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + cleanKey(key)
}

// S3StorageProvider talks to any S3-compatible endpoint using path-style addressing.
type S3StorageProvider struct {
	Config *config.StorageConfig
	Client *s3.Client
}

func NewS3StorageProvider(ctx context.Context, cfg *config.StorageConfig) (*S3StorageProvider, error) {
	awsCfg, err := s3Config.LoadDefaultConfig(ctx,
		s3Config.WithRegion(cfg.S3Region),
		s3Config.WithCredentialsProvider(
			s3Credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3StorageProvider{Config: cfg, Client: client}, nil
}

func s3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (p *S3StorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.Config.S3Bucket),
		Key:           aws.String(cleanKey(key)),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *S3StorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Config.S3Bucket),
		Key:    aws.String(cleanKey(key)),
	})
	if err != nil {
		if s3NotFound(err) {
			return nil, util.ErrFileNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (p *S3StorageProvider) Delete(ctx context.Context, key string) error {
	_, err := p.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.Config.S3Bucket),
		Key:    aws.String(cleanKey(key)),
	})
	if err != nil {
		if s3NotFound(err) {
			return util.ErrFileNotFound
		}
		return err
	}

	_, err = p.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.Config.S3Bucket),
		Key:    aws.String(cleanKey(key)),
	})
	return err
}

func (p *S3StorageProvider) GetURL(key string) string {
	return strings.TrimSuffix(p.Config.S3Endpoint, "/") + "/" + p.Config.S3Bucket + "/" + cleanKey(key)
}

type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}

	if err := bucket.PutObject(cleanKey(key), reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *OSSStorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return nil, err
	}

	body, err := bucket.GetObject(cleanKey(key))
	if err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.Code == "NoSuchKey" {
			return nil, util.ErrFileNotFound
		}
		return nil, err
	}
	return body, nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}

	exists, err := bucket.IsObjectExist(cleanKey(key))
	if err != nil {
		return err
	}
	if !exists {
		return util.ErrFileNotFound
	}
	return bucket.DeleteObject(cleanKey(key))
}

func (p *OSSStorageProvider) GetURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, cleanKey(key))
}

// MemoryStorageProvider keeps files in process memory.
type MemoryStorageProvider struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStorageProvider() *MemoryStorageProvider {
	return &MemoryStorageProvider{files: make(map[string][]byte)}
}

func (p *MemoryStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.files[cleanKey(key)] = data
	p.mu.Unlock()
	return p.GetURL(key), nil
}

func (p *MemoryStorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p.mu.RLock()
	data, ok := p.files[cleanKey(key)]
	p.mu.RUnlock()
	if !ok {
		return nil, util.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *MemoryStorageProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.files[cleanKey(key)]; !ok {
		return util.ErrFileNotFound
	}
	delete(p.files, cleanKey(key))
	return nil
}

func (p *MemoryStorageProvider) GetURL(key string) string {
	return "memory://" + cleanKey(key)
}

// Exists reports whether key is stored.
func (p *MemoryStorageProvider) Exists(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.files[cleanKey(key)]
	return ok
}

func (p *MemoryStorageProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

// NewStorageProvider builds the provider selected by storage.type.
func NewStorageProvider(ctx context.Context, cfg *config.StorageConfig) (StorageProvider, error) {
	switch cfg.Type {
	case config.StorageMinio:
		return NewMinioStorageProvider(ctx, cfg)
	case config.StorageS3:
		return NewS3StorageProvider(ctx, cfg)
	case config.StorageOSS:
		return NewOSSStorageProvider(cfg)
	case config.StorageMemory:
		return NewMemoryStorageProvider(), nil
	case config.StorageLocal, "":
		return &LocalStorageProvider{Config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
