// Package imagestore saves product images and returns the URL they are served from.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

// Store persists an uploaded image under name
type Store interface {
	Save(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// UniqueName derives a collision-free object name that keeps the original extension
func UniqueName(original string) string {
	return fmt.Sprintf("image-%d-%s%s", time.Now().UnixMilli(), uuid.New().String()[:8], strings.ToLower(filepath.Ext(original)))
}

// Local writes images to a directory that the HTTP server exposes under URLPrefix
type Local struct {
	Dir       string
	URLPrefix string
}

// NewLocal creates dir if needed
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: "/uploads"}, nil
}

// Save implements Store
func (l *Local) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(l.Dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return l.URLPrefix + "/" + name, nil
}

// S3 uploads images to a bucket
type S3 struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
}

// NewS3 creates an S3 store using the default AWS credential chain
func NewS3(region, bucket, baseURL string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return NewS3WithClient(s3.New(sess), bucket, baseURL), nil
}

// NewS3WithClient wraps an existing client
func NewS3WithClient(client s3iface.S3API, bucket, baseURL string) *S3 {
	return &S3{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Save implements Store
func (s *S3) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	key := "products/" + filepath.Base(name)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.baseURL + "/" + key, nil
}
