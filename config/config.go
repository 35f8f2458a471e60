// Package config loads the options shared by the command line tool, the HTTP
// server, and the Lambda function.
//
// Values come from, in increasing order of precedence: built in defaults, an
// optional YAML file, and environment variables (possibly loaded from a .env
// file). Secrets only ever come from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbland/mailmerge/dispatch"
	"github.com/mbland/mailmerge/email"
	"github.com/mbland/mailmerge/report"
	"github.com/mbland/mailmerge/storage"
	"github.com/mbland/mailmerge/types"
	"gopkg.in/yaml.v3"
)

const (
	TransportSmtp   = "smtp"
	TransportSes    = "ses"
	TransportResend = "resend"
)

const DefaultCapacity = "100%"
const DefaultListenAddr = "localhost:8080"
const DefaultFilename = "mailmerge.yaml"

const ErrInvalidOptions = types.SentinelError("invalid options")

type SmtpOptions struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
}

type SenderOptions struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

type SesOptions struct {
	ConfigurationSet string `yaml:"configuration_set"`
	Capacity         string `yaml:"capacity"`
}

type ResendOptions struct {
	ApiKey string `yaml:"-"`
}

type StorageOptions struct {
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Endpoint  string        `yaml:"endpoint"`
	Region    string        `yaml:"region"`
	PathStyle bool          `yaml:"path_style"`
	UrlExpiry time.Duration `yaml:"url_expiry"`
	AccessKey string        `yaml:"-"`
	SecretKey string        `yaml:"-"`
}

type Options struct {
	Transport        string         `yaml:"transport"`
	Smtp             SmtpOptions    `yaml:"smtp"`
	Ses              SesOptions     `yaml:"ses"`
	Resend           ResendOptions  `yaml:"-"`
	Sender           SenderOptions  `yaml:"sender"`
	AddressColumn    string         `yaml:"address_column"`
	PerFileCeiling   types.ByteSize `yaml:"per_file_ceiling"`
	AggregateCeiling types.ByteSize `yaml:"aggregate_ceiling"`
	PacingDelay      time.Duration  `yaml:"pacing_delay"`
	SendTimeout      time.Duration  `yaml:"send_timeout"`
	Markdown         bool           `yaml:"markdown"`
	ReportFormat     string         `yaml:"report_format"`
	Storage          StorageOptions `yaml:"storage"`
	Listen           string         `yaml:"listen"`
	ApiToken         string         `yaml:"-"`
}

func Defaults() Options {
	dc := dispatch.DefaultConfig()
	return Options{
		Transport: TransportSmtp,
		Smtp: SmtpOptions{
			Host: email.DefaultSmtpHost,
			Port: email.DefaultSmtpPort,
		},
		Ses:              SesOptions{Capacity: DefaultCapacity},
		AddressColumn:    dc.AddressColumn,
		PerFileCeiling:   dc.PerFileCeiling,
		AggregateCeiling: dc.AggregateCeiling,
		PacingDelay:      dc.PacingDelay,
		SendTimeout:      dc.SendTimeout,
		ReportFormat:     string(report.FormatXlsx),
		Storage:          StorageOptions{UrlExpiry: storage.DefaultUrlExpiry},
		Listen:           DefaultListenAddr,
	}
}

// LoadDotEnv adds the variables from each file to the process environment
// without replacing variables that are already set. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	for _, name := range filenames {
		if name == "" {
			continue
		}
		err := godotenv.Load(name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Load starts from Defaults, applies the YAML file at path if path isn't
// empty, then applies environment overrides read through getenv. Values set
// in the file replace defaults even when they're zero.
func Load(path string, getenv func(string) string) (opts *Options, err error) {
	defaults := Defaults()
	opts = &defaults

	if path != "" {
		if err = readFile(path, opts); err != nil {
			return nil, err
		}
	}

	env := environment{getenv: getenv}
	if err = env.override(opts); err != nil {
		return nil, err
	} else if err = opts.Validate(); err != nil {
		return nil, err
	}
	return
}

func readFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err = decoder.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid value at once.
func (o *Options) Validate() error {
	problems := make([]string, 0, 4)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	transports := []string{TransportSmtp, TransportSes, TransportResend}
	if !slices.Contains(transports, o.Transport) {
		add("transport must be one of %s: %q",
			strings.Join(transports, ", "), o.Transport)
	}
	if o.Smtp.Port <= 0 || o.Smtp.Port > 65535 {
		add("smtp port out of range: %d", o.Smtp.Port)
	}
	if strings.TrimSpace(o.AddressColumn) == "" {
		add("address column must not be blank")
	}
	if o.PerFileCeiling <= 0 {
		add("per-file ceiling must be positive: %s", o.PerFileCeiling)
	}
	if o.AggregateCeiling <= 0 {
		add("aggregate ceiling must be positive: %s", o.AggregateCeiling)
	}
	if o.PacingDelay < 0 {
		add("pacing delay must not be negative: %s", o.PacingDelay)
	}
	if o.SendTimeout <= 0 {
		add("send timeout must be positive: %s", o.SendTimeout)
	}
	if _, err := o.Format(); err != nil {
		add("%s", err)
	}
	if _, err := o.Capacity(); err != nil {
		add("ses capacity: %s", err)
	}

	if len(problems) != 0 {
		return fmt.Errorf(
			"%w:\n  %s", ErrInvalidOptions, strings.Join(problems, "\n  "),
		)
	}
	return nil
}

// RequireSecrets returns an UndefinedEnvVarsError if the sender address or a
// secret the selected transport needs wasn't set.
func (o *Options) RequireSecrets() error {
	missing := make([]string, 0, 2)

	if o.Sender.Address == "" {
		missing = append(missing, "MAILMERGE_SENDER_ADDRESS")
	}
	switch o.Transport {
	case TransportSmtp:
		if o.Smtp.Password == "" {
			missing = append(missing, "SMTP_PASSWORD")
		}
	case TransportResend:
		if o.Resend.ApiKey == "" {
			missing = append(missing, "RESEND_API_KEY")
		}
	}

	if len(missing) != 0 {
		return &UndefinedEnvVarsError{UndefinedVars: missing}
	}
	return nil
}

func (o *Options) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		AddressColumn:    o.AddressColumn,
		PerFileCeiling:   o.PerFileCeiling,
		AggregateCeiling: o.AggregateCeiling,
		PacingDelay:      o.PacingDelay,
		SendTimeout:      o.SendTimeout,
		Markdown:         o.Markdown,
	}
}

func (o *Options) Credentials() email.Credentials {
	return email.Credentials{
		Address:  o.Sender.Address,
		Name:     o.Sender.Name,
		Username: o.Smtp.Username,
		Password: o.Smtp.Password,
	}
}

// ServerCredentials reports whether the transport authenticates with
// credentials the server holds, ignoring the sender's password.
func (o *Options) ServerCredentials() bool {
	return o.Transport != TransportSmtp
}

func (o *Options) Capacity() (types.Capacity, error) {
	return types.ParseCapacity(o.Ses.Capacity)
}

func (o *Options) Format() (report.Format, error) {
	switch f := report.Format(strings.ToLower(o.ReportFormat)); f {
	case report.FormatCsv, report.FormatXlsx:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format: %q", o.ReportFormat)
}

// Endpoint returns nil unless the options override the S3 endpoint or its
// credentials.
func (o *Options) Endpoint() *storage.Endpoint {
	s := &o.Storage
	if s.Endpoint == "" && s.Region == "" && s.AccessKey == "" {
		return nil
	}
	return &storage.Endpoint{
		Url:       s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		PathStyle: s.PathStyle,
	}
}

type UndefinedEnvVarsError struct {
	UndefinedVars []string
}

func (e *UndefinedEnvVarsError) Error() string {
	return "undefined environment variables: " +
		strings.Join(e.UndefinedVars, ", ")
}

type environment struct {
	getenv      func(string) string
	invalidVars []string
}

func (env *environment) override(opts *Options) error {
	env.assign(&opts.Transport, "MAILMERGE_TRANSPORT")
	env.assign(&opts.Smtp.Host, "MAILMERGE_SMTP_HOST")
	assignParsed(env, &opts.Smtp.Port, "MAILMERGE_SMTP_PORT", strconv.Atoi)
	env.assign(&opts.Smtp.Username, "MAILMERGE_SMTP_USERNAME")
	env.assign(&opts.Smtp.Password, "SMTP_PASSWORD")
	env.assign(&opts.Ses.ConfigurationSet, "MAILMERGE_SES_CONFIGURATION_SET")
	env.assign(&opts.Ses.Capacity, "MAILMERGE_SES_CAPACITY")
	env.assign(&opts.Resend.ApiKey, "RESEND_API_KEY")
	env.assign(&opts.ApiToken, "MAILMERGE_API_TOKEN")
	env.assign(&opts.Sender.Address, "MAILMERGE_SENDER_ADDRESS")
	env.assign(&opts.Sender.Name, "MAILMERGE_SENDER_NAME")
	env.assign(&opts.AddressColumn, "MAILMERGE_ADDRESS_COLUMN")
	assignParsed(
		env, &opts.PerFileCeiling, "MAILMERGE_PER_FILE_CEILING",
		types.ParseByteSize,
	)
	assignParsed(
		env, &opts.AggregateCeiling, "MAILMERGE_AGGREGATE_CEILING",
		types.ParseByteSize,
	)
	assignParsed(
		env, &opts.PacingDelay, "MAILMERGE_PACING_DELAY", time.ParseDuration,
	)
	assignParsed(
		env, &opts.SendTimeout, "MAILMERGE_SEND_TIMEOUT", time.ParseDuration,
	)
	assignParsed(env, &opts.Markdown, "MAILMERGE_MARKDOWN", strconv.ParseBool)
	env.assign(&opts.ReportFormat, "MAILMERGE_REPORT_FORMAT")
	env.assign(&opts.Storage.Bucket, "MAILMERGE_S3_BUCKET")
	env.assign(&opts.Storage.Prefix, "MAILMERGE_S3_PREFIX")
	env.assign(&opts.Storage.Endpoint, "MAILMERGE_S3_ENDPOINT")
	env.assign(&opts.Storage.Region, "MAILMERGE_S3_REGION")
	assignParsed(
		env, &opts.Storage.PathStyle, "MAILMERGE_S3_PATH_STYLE",
		strconv.ParseBool,
	)
	env.assign(&opts.Storage.AccessKey, "MAILMERGE_S3_ACCESS_KEY")
	env.assign(&opts.Storage.SecretKey, "MAILMERGE_S3_SECRET_KEY")
	env.assign(&opts.Listen, "MAILMERGE_LISTEN")

	if len(env.invalidVars) != 0 {
		return fmt.Errorf(
			"%w: invalid environment variables:\n  %s",
			ErrInvalidOptions,
			strings.Join(env.invalidVars, "\n  "),
		)
	}
	return nil
}

func (env *environment) assign(opt *string, varname string) {
	if value := env.getenv(varname); value != "" {
		*opt = value
	}
}

func assignParsed[T any](
	env *environment, opt *T, varname string, parse func(string) (T, error),
) {
	value := env.getenv(varname)
	if value == "" {
		return
	}
	if parsed, err := parse(value); err != nil {
		env.invalidVars = append(
			env.invalidVars, fmt.Sprintf("%s=%q: %s", varname, value, err),
		)
	} else {
		*opt = parsed
	}
}
