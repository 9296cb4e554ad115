package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver/internal/config"
)

// S3 uploads recordings to a bucket, under an optional key prefix.
type S3 struct {
	config   config.S3
	uploader *manager.Uploader
	log      *zap.SugaredLogger
}

func NewS3(cfg config.S3, logger *zap.Logger) *S3 {
	options := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
		options.UsePathStyle = true
	}
	return &S3{
		config:   cfg,
		uploader: manager.NewUploader(s3.New(options)),
		log:      logger.Named("s3").Sugar(),
	}
}

func (p *S3) Name() string {
	return KindS3
}

// Key is the object key localPath is uploaded as.
func (p *S3) Key(localPath string) string {
	return path.Join(p.config.Prefix, filepath.Base(localPath))
}

func (p *S3) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := p.Key(localPath)
	p.log.Infof("Uploading %s to bucket '%s'", humanize.Bytes(uint64(info.Size())), p.config.Bucket)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.config.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, p.config.Bucket, err)
	}
	location := fmt.Sprintf("s3://%s/%s", p.config.Bucket, key)
	p.log.Infof("Successfully uploaded object '%s' to bucket '%s'", key, p.config.Bucket)
	return location, nil
}
