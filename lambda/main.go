package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/handler"
	"github.com/mbland/mailmerge/report"
	"github.com/mbland/mailmerge/storage"
)

func buildHandler(ctx context.Context) (h *handler.Handler, err error) {
	var cfg aws.Config
	var opts *config.Options
	var format report.Format
	configPath := os.Getenv("MAILMERGE_CONFIG")

	if cfg, err = awsconfig.LoadDefaultConfig(ctx); err != nil {
		return
	} else if opts, err = config.Load(configPath, os.Getenv); err != nil {
		return
	} else if err = opts.RequireSecrets(); err != nil {
		return
	} else if format, err = opts.Format(); err != nil {
		return
	}

	logger := log.Default()
	transports := handler.NewTransports(opts, &cfg, logger)
	dispatcher := &handler.Dispatcher{
		Transports: transports,
		Config:     opts.DispatchConfig(),
		Log:        logger,
	}
	if capacity, err := opts.Capacity(); err != nil {
		return nil, err
	} else if throttle, err := transports.NewThrottle(ctx, capacity); err != nil {
		return nil, err
	} else {
		dispatcher.UseThrottle(throttle)
	}

	api := &handler.Api{
		Runner:            dispatcher,
		Validator:         transports.NewValidator(),
		Config:            dispatcher.Config,
		Sender:            opts.Credentials(),
		Token:             opts.ApiToken,
		ServerCredentials: opts.ServerCredentials(),
		Log:               logger,
	}

	// Without a bucket, the function still serves the API, but command line
	// send events fail to load their inputs.
	var inputs handler.InputStore = missingBucket{}
	var publisher handler.ReportPublisher
	if opts.Storage.Bucket != "" {
		store := storage.NewS3Store(
			cfg, opts.Storage.Bucket, opts.Storage.Prefix, opts.Endpoint(),
		)
		inputs = store
		publisher = &report.Publisher{
			Store: store, Format: format, Expiry: opts.Storage.UrlExpiry,
		}
	}

	h = handler.NewHandler(
		api.Router(), inputs, dispatcher, publisher, opts.Credentials(), logger,
	)
	return
}

type missingBucket struct{}

func (missingBucket) Get(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNoBucket
}

func main() {
	// Disable standard logger flags. The CloudWatch logs show that the Lambda
	// runtime already adds a timestamp at the beginning of every log line
	// emitted by the function.
	log.SetFlags(0)

	if h, err := buildHandler(context.Background()); err != nil {
		log.Fatalf("Failed to initialize process: %s", err.Error())
	} else {
		lambda.Start(h.HandleEvent)
	}
}
