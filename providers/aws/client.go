package aws

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the subset of the S3 API used by Client
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads run artifacts to an S3 bucket
type Client struct {
	s3Client objectPutter
	bucket   string
}

// NewClient creates a new S3 client for bucket using the default credential chain
func NewClient(ctx context.Context, region, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
	}, nil
}

// Bucket returns the target bucket name
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload copies the local file at path to key and returns its s3:// URI
func (c *Client) Upload(ctx context.Context, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	key = strings.TrimPrefix(key, "/")
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(path)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", path, c.bucket, err)
	}

	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}

func contentType(path string) string {
	if strings.HasSuffix(path, ".yaml") {
		return "application/yaml"
	}
	return "application/octet-stream"
}
