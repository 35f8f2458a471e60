// Package events defines the payloads the command line tool exchanges with
// the Lambda function.
package events

type CommandLineEventType string

const CommandLineSendEvent = CommandLineEventType("Send")

type CommandLineEvent struct {
	MailMergeCommand CommandLineEventType `json:"mailmergeCommand"`
	Send             *SendEvent           `json:"send"`
}

// SendEvent describes a run whose recipient table and attachments the caller
// already uploaded to the function's storage bucket.
type SendEvent struct {
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	From           string   `json:"from,omitempty"`
	FromName       string   `json:"fromName,omitempty"`
	RecipientsKey  string   `json:"recipientsKey"`
	AttachmentKeys []string `json:"attachmentKeys,omitempty"`
}

type SendResponse struct {
	Success   bool
	RunId     string
	Status    string
	Total     int
	NumSent   int
	NumFailed int
	Details   string
	Help      string
	ReportKey string
	ReportUrl string
}
