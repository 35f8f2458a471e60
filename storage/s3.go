// Package storage keeps dispatch inputs and report artifacts in S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mbland/mailmerge/ops"
	"github.com/mbland/mailmerge/types"
)

const ErrNotFound = types.SentinelError("object not found")
const ErrNoBucket = types.SentinelError("no storage bucket configured")

const DefaultUrlExpiry = 24 * time.Hour

type S3Api interface {
	PutObject(
		context.Context, *s3.PutObjectInput, ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)

	GetObject(
		context.Context, *s3.GetObjectInput, ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)
}

type S3Presigner interface {
	PresignGetObject(
		context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
}

// S3Store reads and writes objects under Prefix in Bucket.
type S3Store struct {
	Client    S3Api
	Presigner S3Presigner
	Bucket    string
	Prefix    string
}

// Endpoint overrides the default S3 endpoint and credentials, e.g. for MinIO
// or other S3-compatible services.
type Endpoint struct {
	Url       string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

func NewS3Store(cfg aws.Config, bucket, prefix string, ep *Endpoint) *S3Store {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep == nil {
			return
		}
		if ep.Region != "" {
			o.Region = ep.Region
		}
		if ep.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				ep.AccessKey, ep.SecretKey, "",
			)
		}
		if ep.Url != "" {
			o.BaseEndpoint = aws.String(ep.Url)
			o.UsePathStyle = ep.PathStyle
		}
	})
	return &S3Store{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
		Prefix:    prefix,
	}
}

// Key joins name to Prefix.
func (s *S3Store) Key(name string) string {
	return path.Join(strings.Trim(s.Prefix, "/"), name)
}

func (s *S3Store) Put(
	ctx context.Context, key, contentType string, data []byte,
) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return ops.AwsError(s.describe("failed to put", key), err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	output, err := s.Client.GetObject(ctx, input)

	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.describe("", key))
	} else if err != nil {
		return nil, ops.AwsError(s.describe("failed to get", key), err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.describe("failed to read", key), err)
	}
	return data, nil
}

// Url returns a pre-signed GET URL for key, valid for expiry.
func (s *S3Store) Url(
	ctx context.Context, key string, expiry time.Duration,
) (string, error) {
	if expiry <= 0 {
		expiry = DefaultUrlExpiry
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	req, err := s.Presigner.PresignGetObject(
		ctx, input, s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", ops.AwsError(s.describe("failed to presign", key), err)
	}
	return req.URL, nil
}

func (s *S3Store) describe(action, key string) string {
	return strings.TrimSpace(fmt.Sprintf("%s s3://%s/%s", action, s.Bucket, key))
}
