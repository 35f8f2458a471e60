//go:build small_tests || all_tests

package cmd

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/handler"
	"github.com/mbland/mailmerge/testdoubles"
	"github.com/spf13/cobra"
)

type TestLambdaClient struct {
	InvokeInput  *lambda.InvokeInput
	InvokeOutput *lambda.InvokeOutput
	InvokeError  error
}

func NewTestLambdaClient() *TestLambdaClient {
	return &TestLambdaClient{InvokeOutput: &lambda.InvokeOutput{}}
}

func (tlc *TestLambdaClient) Invoke(
	_ context.Context, input *lambda.InvokeInput, _ ...func(*lambda.Options),
) (*lambda.InvokeOutput, error) {
	tlc.InvokeInput = input
	return tlc.InvokeOutput, tlc.InvokeError
}

// TestServices stands in for the factories the commands use to load options
// and create their dependencies.
type TestServices struct {
	Options         *config.Options
	OptionsError    error
	Transports      *testdoubles.Transports
	Pacer           *testdoubles.Pacer
	DispatcherError error
	Store           *testdoubles.Store
	StoreError      error
	Lambda          *TestLambdaClient
	LambdaError     error
}

func NewTestServices() *TestServices {
	return &TestServices{
		Options:    NewTestOptions(),
		Transports: testdoubles.NewTransports(),
		Pacer:      &testdoubles.Pacer{},
		Store:      testdoubles.NewStore(),
		Lambda:     NewTestLambdaClient(),
	}
}

func (ts *TestServices) LoadOptions(*cobra.Command) (*config.Options, error) {
	if ts.OptionsError != nil {
		return nil, ts.OptionsError
	}
	return ts.Options, nil
}

func (ts *TestServices) NewDispatcher(
	_ context.Context, opts *config.Options, logger *log.Logger,
) (*handler.Dispatcher, error) {
	if ts.DispatcherError != nil {
		return nil, ts.DispatcherError
	}
	return &handler.Dispatcher{
		Transports: ts.Transports,
		Config:     opts.DispatchConfig(),
		Pacer:      ts.Pacer,
		Log:        logger,
	}, nil
}

func (ts *TestServices) NewInputStore(
	context.Context, *config.Options,
) (InputStore, error) {
	if ts.StoreError != nil {
		return nil, ts.StoreError
	}
	return ts.Store, nil
}

func (ts *TestServices) NewLambdaClient(context.Context) (LambdaClient, error) {
	if ts.LambdaError != nil {
		return nil, ts.LambdaError
	}
	return ts.Lambda, nil
}
