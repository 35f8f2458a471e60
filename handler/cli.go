package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path"

	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/events"
	"github.com/mbland/mailmerge/report"
	"github.com/mbland/mailmerge/table"
)

// InputStore is implemented by storage.S3Store.
type InputStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ReportPublisher is implemented by report.Publisher.
type ReportPublisher interface {
	Publish(ctx context.Context, rep *dispatch.Report) (*report.Published, error)
}

type cliHandler struct {
	Inputs      InputStore
	Runner      Runner
	Publisher   ReportPublisher
	Credentials email.Credentials
	Log         *log.Logger
}

func (h *cliHandler) HandleEvent(
	ctx context.Context, e *events.CommandLineEvent,
) (res any, err error) {
	switch e.MailMergeCommand {
	case events.CommandLineSendEvent:
		res = h.HandleSendEvent(ctx, e.Send)
	default:
		err = fmt.Errorf("unknown mailmerge command: %s", e.MailMergeCommand)
	}
	return
}

func (h *cliHandler) HandleSendEvent(
	ctx context.Context, e *events.SendEvent,
) (res *events.SendResponse) {
	res = &events.SendResponse{}
	subject := ""
	defer func() {
		const logFmt = "send: subject: \"%s\"; success: %t; " +
			"num sent: %d; num failed: %d"
		h.Log.Printf(logFmt, subject, res.Success, res.NumSent, res.NumFailed)
	}()

	job, err := h.newJob(ctx, e)
	if err != nil {
		res.Details = err.Error()
		return
	}
	subject = job.Subject

	rep := h.Runner.Run(ctx, job)
	res.Success = rep.Status == dispatch.RunCompleted
	res.RunId = rep.RunId.String()
	res.Status = string(rep.Status)
	res.Total = rep.Total
	res.NumSent = rep.Sent
	res.NumFailed = rep.Failed
	res.Details = rep.AbortMessage()
	res.Help = rep.Help()

	if h.Publisher == nil {
		return
	} else if pub, err := h.Publisher.Publish(ctx, rep); err != nil {
		h.Log.Printf("run %s: %s", rep.RunId, err)
		res.Details = errors.Join(rep.AbortReason, err).Error()
	} else {
		res.ReportKey = pub.Key
		res.ReportUrl = pub.Url
	}
	return
}

func (h *cliHandler) newJob(
	ctx context.Context, e *events.SendEvent,
) (*dispatch.Job, error) {
	if e == nil {
		return nil, errors.New("send event is missing")
	}

	data, err := h.Inputs.Get(ctx, e.RecipientsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	name := path.Base(e.RecipientsKey)
	tbl, err := table.DecodeFile(name, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	atts, err := email.LoadAttachments(ctx, e.AttachmentKeys, h.Inputs.Get)
	if err != nil {
		return nil, err
	}

	creds := h.Credentials
	if e.From != "" {
		creds.Address = e.From
	}
	if e.FromName != "" {
		creds.Name = e.FromName
	}
	return &dispatch.Job{
		Subject:     e.Subject,
		Body:        e.Body,
		Recipients:  tbl.Records,
		Attachments: atts,
		Credentials: creds,
	}, nil
}
