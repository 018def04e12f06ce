package pathload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/pathload/internal/log"
	"github.com/keithlinneman/pathload/internal/xerrors"
)

const tracerName = "github.com/keithlinneman/pathload/internal/pathload"

// Metrics observes loads. internal/metrics provides the prometheus one.
type Metrics interface {
	LoadStarted(kind string)
	LoadFinished(kind, outcome string, bytes int, d time.Duration)
}

// Loader classifies targets and routes them to a backend. It holds only
// configuration, so one Loader may serve any number of concurrent loads.
type Loader struct {
	files   FileLoader
	http    *HTTPLoader
	s3      S3API
	ssm     SSMAPI
	limiter *rate.Limiter
	baseDir string
	logger  log.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func New(opts ...LoaderOption) *Loader {
	l := &Loader{
		files:  OSFiles(),
		http:   &HTTPLoader{},
		logger: log.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

var defaultLoader = sync.OnceValue(func() *Loader { return New() })

// Load loads target with a Loader using default settings.
func Load(ctx context.Context, target string, opts ...Option) (string, error) {
	return defaultLoader().Load(ctx, target, opts...)
}

// LoadAsync is the Future form of Load.
func LoadAsync(ctx context.Context, target string, opts ...Option) *Future {
	return defaultLoader().LoadAsync(ctx, target, opts...)
}

// Load blocks until target is loaded. A callback set with WithCallback runs
// before Load returns, with the same values.
func (l *Loader) Load(ctx context.Context, target string, opts ...Option) (string, error) {
	o := buildOptions(opts)
	text, err := l.load(ctx, target, o)
	l.notify(ctx, o.Callback, text, err)
	return text, err
}

// LoadAsync starts loading target and returns immediately. A callback set with
// WithCallback runs before the Future settles, with the same values.
func (l *Loader) LoadAsync(ctx context.Context, target string, opts ...Option) *Future {
	o := buildOptions(opts)
	f := &Future{done: make(chan struct{})}
	go func() {
		text, err := l.load(ctx, target, o)
		l.notify(ctx, o.Callback, text, err)
		f.settle(text, err)
	}()
	return f
}

// notify runs cb once; a panicking callback is logged and cannot change the
// outcome already handed to the caller.
func (l *Loader) notify(ctx context.Context, cb Callback, text string, err error) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(ctx, xerrors.WithStack(fmt.Errorf("%v", r)), "load callback panicked")
		}
	}()
	cb(text, err)
}

func (l *Loader) load(ctx context.Context, target string, o Options) (text string, err error) {
	t := l.classify(target)
	kind := t.Kind.String()

	ctx, span := l.tracer.Start(ctx, "pathload.Load", trace.WithAttributes(
		attribute.String("pathload.kind", kind),
		attribute.String("pathload.target", t.display()),
	))
	defer span.End()

	if l.metrics != nil {
		l.metrics.LoadStarted(kind)
	}
	start := time.Now()

	switch t.Kind {
	case KindHTTP:
		text, err = l.http.Load(ctx, t.Location, o)
	case KindS3:
		text, err = l.loadS3(ctx, t.Location, o)
	case KindSSM:
		text, err = l.loadSSM(ctx, t.Location)
	default:
		text, err = l.loadFile(ctx, t.Location, o)
	}
	if err != nil {
		text = ""
	}

	d := time.Since(start)
	if l.metrics != nil {
		l.metrics.LoadFinished(kind, Outcome(err), len(text), d)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn(ctx, "load failed",
			"target", t.display(),
			"kind", kind,
			"outcome", Outcome(err),
			"duration", d,
			"error", err,
		)
		return "", err
	}
	span.SetAttributes(attribute.Int("pathload.bytes", len(text)))
	l.logger.Debug(ctx, "loaded",
		"target", t.display(),
		"kind", kind,
		"bytes", len(text),
		"duration", d,
	)
	return text, nil
}

func (l *Loader) loadFile(ctx context.Context, p string, o Options) (string, error) {
	abs, err := resolvePath(l.baseDir, p)
	if err != nil {
		return "", xerrors.Wrap(err, "resolve working directory")
	}
	b, err := l.files.ReadFile(ctx, abs)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupportedEnvironment):
		return "", xerrors.Wrapf(err, "load %s", abs)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", err
	default:
		return "", newFileError(abs, err)
	}
	return decode(b, o.Encoding)
}

// Outcome buckets err for metrics and logs.
func Outcome(err error) string {
	var (
		fe *FileError
		se *StatusError
		he *HookError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnsupportedEnvironment):
		return "unsupported"
	case errors.As(err, &he):
		return "hook_error"
	case errors.As(err, &se):
		return "http_status"
	case errors.As(err, &fe) && fe.Code == "ENOENT":
		return "not_found"
	case errors.As(err, &fe):
		return "io_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Future is the pending result of LoadAsync.
type Future struct {
	done chan struct{}
	text string
	err  error
}

func (f *Future) settle(text string, err error) {
	f.text, f.err = text, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the outcome without blocking. ok is false while the load is
// still running.
func (f *Future) Result() (text string, err error, ok bool) {
	select {
	case <-f.done:
		return f.text, f.err, true
	default:
		return "", nil, false
	}
}

// Wait blocks until the load settles or ctx ends. Giving up on ctx does not
// cancel the load; cancel the context passed to LoadAsync for that.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.text, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
