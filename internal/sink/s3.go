package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink writes report artefacts to a bucket via aws-sdk-go-v2's upload
// manager. S3 PutObject is already atomic from a reader's perspective (no
// object is visible until the request completes), so there is no
// temp-key-then-rename step the way the local sink needs one.
type S3Sink struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewS3Sink(client *s3.Client, bucket, prefix string) *S3Sink {
	return &S3Sink{uploader: manager.NewUploader(client), bucket: bucket, prefix: prefix}
}

func (s *S3Sink) WriteReport(ctx context.Context, markdown string, meta Metadata) error {
	latestKey := s.key(meta.Owner, meta.Name, "latest.md")
	datedKey := s.key(meta.Owner, meta.Name, fmt.Sprintf("%s-%s.md", meta.Date, meta.ReportID))

	for _, key := range []string{latestKey, datedKey} {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(markdown),
			ContentType: aws.String("text/markdown"),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

func (s *S3Sink) key(owner, name, file string) string {
	parts := []string{owner, name, file}
	if s.prefix != "" {
		parts = append([]string{strings.Trim(s.prefix, "/")}, parts...)
	}
	return strings.Join(parts, "/")
}
