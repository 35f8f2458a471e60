package cmd

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/ops"
	"github.com/mbland/mailmerge/storage"
)

// LoadAwsConfig loads the shared AWS configuration and credentials.
func LoadAwsConfig(ctx context.Context) (*aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, ops.AwsError("failed to load AWS configuration", err)
	}
	return &cfg, nil
}

type LambdaClient interface {
	Invoke(
		context.Context,
		*lambda.InvokeInput,
		...func(*lambda.Options),
	) (*lambda.InvokeOutput, error)
}

type LambdaClientFactoryFunc func(ctx context.Context) (LambdaClient, error)

func NewLambdaClient(ctx context.Context) (LambdaClient, error) {
	if cfg, err := LoadAwsConfig(ctx); err != nil {
		return nil, err
	} else {
		return lambda.NewFromConfig(*cfg), nil
	}
}

// InputStore receives the recipient table and attachments for a remote send.
// storage.S3Store implements it.
type InputStore interface {
	Key(name string) string
	Put(ctx context.Context, key, contentType string, data []byte) error
}

type InputStoreFactoryFunc func(
	ctx context.Context, opts *config.Options,
) (InputStore, error)

func NewInputStore(
	ctx context.Context, opts *config.Options,
) (InputStore, error) {
	if opts.Storage.Bucket == "" {
		return nil, fmt.Errorf(
			"%w: set storage.bucket or MAILMERGE_S3_BUCKET", storage.ErrNoBucket,
		)
	}
	cfg, err := LoadAwsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(
		*cfg, opts.Storage.Bucket, opts.Storage.Prefix, opts.Endpoint(),
	), nil
}
