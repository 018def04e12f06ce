package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/keithlinneman/pathload/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	EnableTracing     bool
	OTLPEndpoint      string
	TraceSample       float64
	Method            string
	Headers           HeaderList
	BasicAuth         string
	Encoding          string
	Timeout           time.Duration
	Rate              float64
	Burst             int
	BaseDir           string
	EnableAWS         bool
	AWSRegion         string
	MetricsFile       string
}

// HeaderList collects repeated -header "Key: Value" flags.
type HeaderList []string

func (h *HeaderList) String() string { return strings.Join(*h, ", ") }

func (h *HeaderList) Set(v string) error {
	if _, _, err := SplitHeader(v); err != nil {
		return err
	}
	*h = append(*h, v)
	return nil
}

// SplitHeader parses "Key: Value".
func SplitHeader(v string) (key, value string, err error) {
	k, val, ok := strings.Cut(v, ":")
	k = strings.TrimSpace(k)
	if !ok || k == "" || strings.ContainsAny(k, " \t") {
		return "", "", fmt.Errorf("header must look like \"Key: Value\" (got %q)", v)
	}
	return k, strings.TrimSpace(val), nil
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false), written to stderr")
	fs.StringVar(&c.LogLevel, "log-level", "warn", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", false, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 8, "max error chain depth (1..64)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 1.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.Method, "method", http.MethodGet, "HTTP method for http(s) targets")
	fs.Var(&c.Headers, "header", "request header \"Key: Value\" for http(s) targets (repeatable)")
	fs.StringVar(&c.BasicAuth, "basic-auth", "", "user:password for HTTP basic auth")
	fs.StringVar(&c.Encoding, "encoding", "", "charset override for decoding content (default utf-8 or the response charset)")
	fs.DurationVar(&c.Timeout, "timeout", 30*time.Second, "per-target load timeout (0 disables)")
	fs.Float64Var(&c.Rate, "rate", 0, "max network requests per second across all targets (0 = unlimited)")
	fs.IntVar(&c.Burst, "burst", 1, "rate limiter burst size")
	fs.StringVar(&c.BaseDir, "base-dir", "", "directory relative paths resolve against (default working directory)")
	fs.BoolVar(&c.EnableAWS, "enable-aws", false, "Enable s3:// and ssm:// targets using the default AWS credential chain")
	fs.StringVar(&c.AWSRegion, "aws-region", "", "AWS region override")
	fs.StringVar(&c.MetricsFile, "metrics-file", "", "write prometheus metrics to this file (textfile collector format) on exit")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			// numeric flags store a zero value on a failed Set; a HeaderList rejects before appending
			if _, isList := f.Value.(*HeaderList); !isList {
				_ = fs.Set(f.Name, prev)
			}
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.Method == "" || strings.ContainsAny(c.Method, " \t/") {
		errs = append(errs, fmt.Errorf("invalid METHOD %q", c.Method))
	}
	for _, h := range c.Headers {
		if _, _, err := SplitHeader(h); err != nil {
			errs = append(errs, fmt.Errorf("invalid HEADER: %w", err))
		}
	}
	if c.BasicAuth != "" && !strings.Contains(c.BasicAuth, ":") {
		errs = append(errs, fmt.Errorf("BASIC_AUTH must be user:password"))
	}
	if c.Encoding != "" {
		if _, err := htmlindex.Get(c.Encoding); err != nil {
			errs = append(errs, fmt.Errorf("unknown ENCODING %q", c.Encoding))
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("invalid TIMEOUT %s (must be >= 0)", c.Timeout))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("invalid RATE %g (must be >= 0)", c.Rate))
	}
	if c.Rate > 0 && c.Burst < 1 {
		errs = append(errs, fmt.Errorf("BURST must be >= 1 when RATE is set (got %d)", c.Burst))
	}
	if c.BaseDir != "" {
		if st, err := os.Stat(c.BaseDir); err != nil || !st.IsDir() {
			errs = append(errs, fmt.Errorf("BASE_DIR %q is not a directory", c.BaseDir))
		}
	}
	if c.AWSRegion != "" && !c.EnableAWS {
		errs = append(errs, fmt.Errorf("AWS_REGION set but ENABLE_AWS=false"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
