// Package objstore uploads files to S3-compatible object storage.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures NewS3Client.
type Options struct {
	Region    string
	Endpoint  string // custom endpoint; switches to path-style addressing
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client from the default AWS configuration chain,
// overridden by opts.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("objstore: aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.Endpoint != ""
	}), nil
}

// Uploader copies local files to a bucket under a key prefix.
type Uploader struct {
	api    PutObjectAPI
	bucket string
	prefix string
	log    *slog.Logger
}

// NewUploader creates an Uploader.
func NewUploader(api PutObjectAPI, bucket, prefix string, log *slog.Logger) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: log}
}

// Key returns the object key for a file name.
func (u *Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// UploadFiles uploads each file under its base name and returns the s3://
// URIs written. It stops at the first failure.
func (u *Uploader) UploadFiles(ctx context.Context, files ...string) ([]string, error) {
	uris := make([]string, 0, len(files))
	for _, f := range files {
		uri, err := u.upload(ctx, f)
		if err != nil {
			return uris, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (u *Uploader) upload(ctx context.Context, file string) (string, error) {
	fh, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("objstore: %w", err)
	}
	defer fh.Close()

	name := filepath.Base(file)
	key := u.Key(name)
	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        fh,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("objstore: put s3://%s/%s: %w", u.bucket, key, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.log.Info("uploaded", "uri", uri)
	return uri, nil
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return "text/csv"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
