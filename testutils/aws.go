package testutils

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
	"gotest.tools/assert"
)

// BaseEndpoint is a host:port on which nothing is listening, for tests that
// point S3 or SES clients at a local endpoint.
type BaseEndpoint string

func (e BaseEndpoint) Url() string {
	return "http://" + string(e)
}

// AwsConfig returns a configuration with static credentials and a fake
// region, so creating clients never reads the environment or contacts AWS.
func AwsConfig() (*aws.Config, *BaseEndpoint, error) {
	hostPort, err := PickUnusedHostPort()
	if err != nil {
		return nil, nil, fmt.Errorf("could not create local endpoint: %s", err)
	}
	endpoint := BaseEndpoint(hostPort)

	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		),
		config.WithRegion("local"),
	)
	if err != nil {
		err = fmt.Errorf("error loading local AWS configuration: %s", err)
		return nil, nil, err
	}
	return &cfg, &endpoint, nil
}

func AwsServerError(msg string) error {
	return &smithy.GenericAPIError{Message: msg, Fault: smithy.FaultServer}
}

func AssertAwsStringEqual(t *testing.T, expected string, actual *string) {
	t.Helper()
	assert.Equal(t, expected, aws.ToString(actual))
}
