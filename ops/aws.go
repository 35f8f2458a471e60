package ops

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// AwsError prefixes err with msg, and wraps it with ErrExternal if it's an AWS
// server fault.
//
// Inspired by:
// https://aws.github.io/aws-sdk-go-v2/docs/handling-errors/#api-error-responses
func AwsError(msg string, err error) error {
	var apiErr smithy.APIError

	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return fmt.Errorf("%s: %w: %w", msg, ErrExternal, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// AwsErrorCode returns the API error code from err, or "" if err isn't an AWS
// API error.
func AwsErrorCode(err error) string {
	var apiErr smithy.APIError

	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
