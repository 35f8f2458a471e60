//go:build small_tests || all_tests

package handler

import (
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/mbland/mailmerge/events"
	"gotest.tools/assert"
)

func TestEventTypeStrings(t *testing.T) {
	assert.Equal(t, "Unexpected event", UnexpectedEvent.String())
	assert.Equal(t, "Null event", NullEvent.String())
	assert.Equal(t, "API Request event", ApiRequest.String())
	assert.Equal(t, "Command line event", CommandLineEvent.String())
	assert.Equal(t, "Unknown event", (UnexpectedEvent - 1).String())
}

func TestUnmarshalNullEventIsNop(t *testing.T) {
	e := Event{}

	err := e.UnmarshalJSON([]byte("null"))

	assert.NilError(t, err)
	assert.Equal(t, NullEvent, e.Type)
	assert.DeepEqual(t, Event{}, e)
}

func TestUnmarshalUnexpectedEventFails(t *testing.T) {
	e := Event{}

	err := e.UnmarshalJSON([]byte(`{ "foo": "bar" }`))

	assert.Error(t, err, `failed to parse unexpected event: { "foo": "bar" }`)
	assert.Equal(t, UnexpectedEvent, e.Type)
}

const apiRequestJson = `{
	"version": "2.0",
	"routeKey": "GET /api/sample",
	"rawPath": "/api/sample"
}`

func TestUnmarshalApiRequest(t *testing.T) {
	e := Event{}

	err := e.UnmarshalJSON([]byte(apiRequestJson))

	assert.NilError(t, err)
	assert.DeepEqual(t, e, Event{
		Type: ApiRequest,
		ApiRequest: awsevents.APIGatewayV2HTTPRequest{
			Version:  "2.0",
			RouteKey: "GET /api/sample",
			RawPath:  "/api/sample",
		},
	})
}

const commandLineEventJson = `{
	"mailmergeCommand": "Send",
	"send": {
		"subject": "Statement for {Name}",
		"body": "Hi {Name}",
		"recipientsKey": "inputs/recipients.csv",
		"attachmentKeys": ["inputs/statement.pdf"]
	}
}`

func TestUnmarshalCommandLineEvent(t *testing.T) {
	e := Event{}

	err := e.UnmarshalJSON([]byte(commandLineEventJson))

	assert.NilError(t, err)
	assert.DeepEqual(t, e, Event{
		Type: CommandLineEvent,
		CommandLineEvent: events.CommandLineEvent{
			MailMergeCommand: events.CommandLineSendEvent,
			Send: &events.SendEvent{
				Subject:        "Statement for {Name}",
				Body:           "Hi {Name}",
				RecipientsKey:  "inputs/recipients.csv",
				AttachmentKeys: []string{"inputs/statement.pdf"},
			},
		},
	})
}
