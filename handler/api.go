package handler

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/report"
	"github.com/mbland/mailmerge/table"
	"github.com/mbland/mailmerge/types"
)

// UploadHeadroom is added to the aggregate attachment ceiling to cap request
// bodies, leaving room for the recipient table and form fields.
const UploadHeadroom = 10 * types.MiB

const maxUploadMemory = 32 << 20

const SampleFilename = "sample.xlsx"

// Form fields accepted by the API. The recipient table may arrive under any
// of RecipientFields; attachments use AttachmentPrefix followed by an index.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldName        = "name"
	FieldSubject     = "subject"
	FieldTemplate    = "template"
	AttachmentPrefix = "attachment_"
)

var RecipientFields = []string{"recipients", "file", "excel_file"}

const ErrMissingRecipients = types.SentinelError("no recipient table uploaded")

const ErrInvalidToken = types.SentinelError("missing or invalid API token")

const ErrCredentialsRequired = types.SentinelError(
	"sender email and password required",
)

const ErrTokenRequired = types.SentinelError(
	"sending with the server's credentials requires an API token",
)

// Api serves the HTTP interface.
//
// When Token is set, every request must carry it as a bearer token, and
// credentials submitted with a request override the Sender defaults. Without
// a Token, validate and send requests must submit their own email and
// password, and are refused outright if ServerCredentials is set, since the
// transport would authenticate with credentials the server holds.
type Api struct {
	Runner            Runner
	Validator         email.Validator
	Config            dispatch.Config
	Sender            email.Credentials
	Token             string
	ServerCredentials bool
	Log               *log.Logger
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Help    string `json:"help,omitempty"`
}

// abortResponse describes a run that stopped before sending anything.
type abortResponse struct {
	errorResponse
	RunId       string           `json:"runId"`
	SentCount   int              `json:"sentCount"`
	FailedCount int              `json:"failedCount"`
	TotalCount  int              `json:"totalCount"`
	Report      *dispatch.Report `json:"report"`
}

type sendResponse struct {
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	SentCount      int              `json:"sentCount"`
	FailedCount    int              `json:"failedCount"`
	TotalCount     int              `json:"totalCount"`
	Help           string           `json:"help,omitempty"`
	Report         *dispatch.Report `json:"report"`
	ReportFile     string           `json:"reportFile,omitempty"`
	ReportFilename string           `json:"reportFilename,omitempty"`
}

func (a *Api) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Post("/analyze", a.analyze)
		r.Post("/validate", a.validate)
		r.Post("/send", a.send)
		r.Get("/sample", a.sample)
	})
	return r
}

func (a *Api) analyze(w http.ResponseWriter, r *http.Request) {
	if err := a.parseUpload(w, r); err != nil {
		a.writeError(w, r, uploadErrorStatus(err), err, "")
	} else if tbl, err := recipientTable(r); err != nil {
		a.writeError(w, r, http.StatusBadRequest, err, "")
	} else {
		summary := table.Summarize(tbl, table.DefaultPreviewRows)
		a.writeJson(w, http.StatusOK, summary)
	}
}

func (a *Api) validate(w http.ResponseWriter, r *http.Request) {
	if err := a.parseUpload(w, r); err != nil {
		a.writeError(w, r, uploadErrorStatus(err), err, "")
		return
	}
	creds, err := a.credentials(r)
	if err != nil {
		a.writeError(w, r, credentialsErrorStatus(err), err, "")
		return
	}
	result := a.Validator.ValidateCredentials(r.Context(), creds)
	a.writeJson(w, http.StatusOK, result)
}

func (a *Api) send(w http.ResponseWriter, r *http.Request) {
	if err := a.parseUpload(w, r); err != nil {
		a.writeError(w, r, uploadErrorStatus(err), err, "")
		return
	}

	creds, err := a.credentials(r)
	if err != nil {
		a.writeError(w, r, credentialsErrorStatus(err), err, "")
		return
	}
	tbl, err := recipientTable(r)
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, err, "")
		return
	}
	atts, err := formAttachments(r.MultipartForm)
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, err, "")
		return
	}

	rep := a.Runner.Run(r.Context(), &dispatch.Job{
		Subject:     r.FormValue(FieldSubject),
		Body:        r.FormValue(FieldTemplate),
		Recipients:  tbl.Records,
		Attachments: atts,
		Credentials: creds,
	})

	var precondErr *dispatch.PreconditionError
	if errors.As(rep.AbortReason, &precondErr) {
		status := preconditionStatus(precondErr.Code)
		a.Log.Printf(
			"%s %s: %d: run %s: %s",
			r.Method, r.URL.Path, status, rep.RunId, precondErr,
		)
		a.writeJson(w, status, &abortResponse{
			errorResponse: errorResponse{
				Status:  "error",
				Message: precondErr.Error(),
				Help:    rep.Help(),
			},
			RunId:       rep.RunId.String(),
			SentCount:   rep.Sent,
			FailedCount: rep.Failed,
			TotalCount:  rep.Total,
			Report:      rep,
		})
		return
	}

	resp, err := newSendResponse(rep)
	if err != nil {
		a.Log.Printf("run %s: %s", rep.RunId, err)
	}
	a.writeJson(w, http.StatusOK, resp)
}

func (a *Api) sample(w http.ResponseWriter, r *http.Request) {
	buf := &bytes.Buffer{}
	if err := table.WriteSample(buf); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, err, "")
		return
	}
	disposition := mime.FormatMediaType(
		"attachment", map[string]string{"filename": SampleFilename},
	)
	w.Header().Set("Content-Type", report.ContentType(report.FormatXlsx))
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (a *Api) parseUpload(w http.ResponseWriter, r *http.Request) error {
	limit := int64(a.Config.AggregateCeiling + UploadHeadroom)
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(maxUploadMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	return nil
}

func uploadErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func preconditionStatus(code dispatch.Precondition) int {
	switch code {
	case dispatch.TransportUnvalidated:
		return http.StatusUnauthorized
	case dispatch.BudgetExceeded:
		return http.StatusRequestEntityTooLarge
	case dispatch.InsufficientCapacity:
		return http.StatusTooManyRequests
	}
	return http.StatusBadRequest
}

// authenticate rejects requests without the bearer Token, if Token is set.
func (a *Api) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Token != "" {
			token, ok := bearerToken(r)
			valid := subtle.ConstantTimeCompare([]byte(token), []byte(a.Token))
			if !ok || valid != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				a.writeError(w, r, http.StatusUnauthorized, ErrInvalidToken, "")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", false
	}
	token := auth[7:]
	return token, token != ""
}

func (a *Api) credentials(r *http.Request) (creds email.Credentials, err error) {
	submitted := email.Credentials{
		Address:  strings.TrimSpace(r.FormValue(FieldEmail)),
		Name:     strings.TrimSpace(r.FormValue(FieldName)),
		Password: r.FormValue(FieldPassword),
	}

	if a.Token == "" {
		if a.ServerCredentials {
			return creds, ErrTokenRequired
		} else if submitted.Address == "" || submitted.Password == "" {
			return creds, ErrCredentialsRequired
		}
		if submitted.Name == "" {
			submitted.Name = a.Sender.Name
		}
		return submitted, nil
	}

	creds = a.Sender
	if submitted.Address != "" {
		creds.Username = ""
	}
	if err = mergo.Merge(&creds, submitted, mergo.WithOverride); err != nil {
		err = fmt.Errorf("failed to apply submitted credentials: %w", err)
	}
	return
}

func credentialsErrorStatus(err error) int {
	if errors.Is(err, ErrCredentialsRequired) {
		return http.StatusUnauthorized
	} else if errors.Is(err, ErrTokenRequired) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func recipientTable(r *http.Request) (*table.Table, error) {
	for _, field := range RecipientFields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", field, err)
		}
		defer file.Close()
		return table.DecodeFile(header.Filename, file)
	}
	return nil, fmt.Errorf(
		"%w: expected one of: %s",
		ErrMissingRecipients,
		strings.Join(RecipientFields, ", "),
	)
}

// formAttachments returns the attachment_N files ordered by N.
func formAttachments(form *multipart.Form) ([]email.Attachment, error) {
	if form == nil {
		return nil, nil
	}

	type indexedField struct {
		index int
		name  string
	}
	fields := make([]indexedField, 0, len(form.File))

	for name := range form.File {
		suffix, ok := strings.CutPrefix(name, AttachmentPrefix)
		if !ok {
			continue
		}
		index, err := strconv.Atoi(suffix)
		if err != nil {
			return nil, fmt.Errorf("invalid attachment field name: %s", name)
		}
		fields = append(fields, indexedField{index, name})
	}
	slices.SortFunc(fields, func(a, b indexedField) int {
		return a.index - b.index
	})

	atts := make([]email.Attachment, 0, len(fields))
	for _, f := range fields {
		for _, header := range form.File[f.name] {
			content, err := readFormFile(header)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to read attachment %s: %w", header.Filename, err,
				)
			}
			atts = append(atts, email.NewAttachment(header.Filename, content))
		}
	}
	return atts, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func newSendResponse(rep *dispatch.Report) (*sendResponse, error) {
	resp := &sendResponse{
		Status:      "success",
		SentCount:   rep.Sent,
		FailedCount: rep.Failed,
		TotalCount:  rep.Total,
		Help:        rep.Help(),
		Report:      rep,
		Message: fmt.Sprintf(
			"Successfully sent %d out of %d emails", rep.Sent, rep.Total,
		),
	}
	if rep.Status == dispatch.RunAborted {
		resp.Status = "aborted"
		resp.Message = fmt.Sprintf(
			"Sent %d out of %d emails before aborting: %s",
			rep.Sent, rep.Total, rep.AbortMessage(),
		)
	}

	buf := &bytes.Buffer{}
	if err := report.Write(buf, rep, report.FormatXlsx); err != nil {
		return resp, err
	}
	resp.ReportFile = base64.StdEncoding.EncodeToString(buf.Bytes())
	resp.ReportFilename = report.Filename(rep.Started, report.FormatXlsx)
	return resp, nil
}

func (a *Api) writeError(
	w http.ResponseWriter, r *http.Request, status int, err error, help string,
) {
	a.Log.Printf(
		"%s %s: %d: %s", r.Method, r.URL.Path, status, err,
	)
	a.writeJson(w, status, &errorResponse{
		Status: "error", Message: err.Error(), Help: help,
	})
}

func (a *Api) writeJson(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		a.Log.Printf("failed to encode response: %s", err)
		status = http.StatusInternalServerError
		data = []byte(`{"status":"error","message":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
