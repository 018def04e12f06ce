package pathload

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/pathload/internal/log"
)

// DoneFunc completes a ProcessContent hook. Only the first call counts.
type DoneFunc func(content string, err error)

// Callback receives the outcome of a load.
type Callback func(text string, err error)

// PrepareRequestFunc may mutate the outgoing request (headers, auth, URL)
// before it is sent. A returned error or a panic aborts the load.
type PrepareRequestFunc func(req *http.Request) error

// ProcessContentFunc replaces the default body decoding of a successful
// response. It must eventually call done, possibly from another goroutine.
// A returned error or a panic fails the load unless done was already called.
type ProcessContentFunc func(resp *http.Response, done DoneFunc) error

// Options configure a single load.
type Options struct {
	Method         string
	Header         http.Header
	PrepareRequest PrepareRequestFunc
	ProcessContent ProcessContentFunc
	Encoding       string
	Callback       Callback

	basicAuth    bool
	user, secret string
}

type Option func(*Options)

// WithMethod sets the HTTP verb, GET by default.
func WithMethod(method string) Option {
	return func(o *Options) { o.Method = strings.ToUpper(strings.TrimSpace(method)) }
}

// WithHeader adds a request header. Repeated keys accumulate.
func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = make(http.Header)
		}
		o.Header.Add(key, value)
	}
}

// WithBasicAuth sets HTTP basic credentials on the request before any
// PrepareRequest hook runs.
func WithBasicAuth(user, password string) Option {
	return func(o *Options) {
		o.basicAuth = true
		o.user, o.secret = user, password
	}
}

func WithPrepareRequest(fn PrepareRequestFunc) Option {
	return func(o *Options) { o.PrepareRequest = fn }
}

func WithProcessContent(fn ProcessContentFunc) Option {
	return func(o *Options) { o.ProcessContent = fn }
}

// WithEncoding overrides the charset used to decode file and response bytes.
// Any WHATWG encoding label is accepted (latin1, utf-16le, shift_jis, ...).
func WithEncoding(label string) Option {
	return func(o *Options) { o.Encoding = label }
}

// WithCallback registers a handler invoked exactly once with the outcome.
func WithCallback(cb Callback) Option {
	return func(o *Options) { o.Callback = cb }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient replaces the otelhttp-instrumented default client.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.http.Client = c }
}

// WithBaseDir resolves relative paths against dir instead of the working
// directory of the process.
func WithBaseDir(dir string) LoaderOption {
	return func(l *Loader) { l.baseDir = dir }
}

func WithFileLoader(f FileLoader) LoaderOption {
	return func(l *Loader) { l.files = f }
}

// WithS3Client enables s3://bucket/key targets.
func WithS3Client(c S3API) LoaderOption {
	return func(l *Loader) { l.s3 = c }
}

// WithSSMClient enables ssm://name targets.
func WithSSMClient(c SSMAPI) LoaderOption {
	return func(l *Loader) { l.ssm = c }
}

// WithRateLimiter paces every network and object-store request through lim.
func WithRateLimiter(lim *rate.Limiter) LoaderOption {
	return func(l *Loader) {
		l.limiter = lim
		l.http.Limiter = lim
	}
}

func WithLogger(lg log.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func WithMetrics(m Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

func WithTracer(t trace.Tracer) LoaderOption {
	return func(l *Loader) {
		if t != nil {
			l.tracer = t
		}
	}
}
