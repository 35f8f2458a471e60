// Package handler exposes dispatch runs over HTTP and as a Lambda function.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strings"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/mbland/mailmerge/email"
)

// Handler receives Lambda events. API Gateway requests go to Router, and
// command line events go to the send event handler.
type Handler struct {
	Router http.Handler
	Cli    *cliHandler
	Log    *log.Logger
}

func NewHandler(
	router http.Handler,
	inputs InputStore,
	runner Runner,
	publisher ReportPublisher,
	creds email.Credentials,
	logger *log.Logger,
) *Handler {
	return &Handler{
		Router: router,
		Cli: &cliHandler{
			Inputs:      inputs,
			Runner:      runner,
			Publisher:   publisher,
			Credentials: creds,
			Log:         logger,
		},
		Log: logger,
	}
}

func (h *Handler) HandleEvent(ctx context.Context, event *Event) (any, error) {
	switch event.Type {
	case ApiRequest:
		return h.handleApiRequest(ctx, &event.ApiRequest)
	case CommandLineEvent:
		return h.Cli.HandleEvent(ctx, &event.CommandLineEvent)
	case NullEvent:
		return nil, nil
	}
	h.Log.Printf("unexpected event: %s", event.Type)
	return nil, nil
}

func (h *Handler) handleApiRequest(
	ctx context.Context, req *awsevents.APIGatewayV2HTTPRequest,
) (res *awsevents.APIGatewayV2HTTPResponse, err error) {
	var httpReq *http.Request
	if httpReq, err = newHttpRequest(ctx, req); err != nil {
		h.Log.Printf("failed to convert API request: %s", err)
		return &awsevents.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       fmt.Sprintf("%s\n", err),
		}, nil
	}

	rb := &responseBuffer{header: http.Header{}}
	h.Router.ServeHTTP(rb, httpReq)
	return rb.apiResponse(), nil
}

func newHttpRequest(
	ctx context.Context, req *awsevents.APIGatewayV2HTTPRequest,
) (*http.Request, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		var err error
		if body, err = base64.StdEncoding.DecodeString(req.Body); err != nil {
			return nil, fmt.Errorf("failed to decode request body: %w", err)
		}
	}

	url := req.RawPath
	if req.RawQueryString != "" {
		url += "?" + req.RawQueryString
	}
	method := req.RequestContext.HTTP.Method
	httpReq, err := http.NewRequestWithContext(
		ctx, method, url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	for _, cookie := range req.Cookies {
		httpReq.Header.Add("Cookie", cookie)
	}
	return httpReq, nil
}

// responseBuffer collects a Router response for conversion to an API Gateway
// response.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (rb *responseBuffer) Header() http.Header {
	return rb.header
}

func (rb *responseBuffer) Write(data []byte) (int, error) {
	if rb.status == 0 {
		rb.status = http.StatusOK
	}
	return rb.body.Write(data)
}

func (rb *responseBuffer) WriteHeader(status int) {
	if rb.status == 0 {
		rb.status = status
	}
}

func (rb *responseBuffer) apiResponse() *awsevents.APIGatewayV2HTTPResponse {
	res := &awsevents.APIGatewayV2HTTPResponse{
		StatusCode: rb.status,
		Headers:    make(map[string]string, len(rb.header)),
	}
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}
	for name, values := range rb.header {
		res.Headers[name] = strings.Join(values, ", ")
	}

	if isTextual(rb.header.Get("Content-Type")) {
		res.Body = rb.body.String()
	} else {
		res.Body = base64.StdEncoding.EncodeToString(rb.body.Bytes())
		res.IsBase64Encoded = true
	}
	return res
}

func isTextual(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType == ""
	}
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/json"
}
