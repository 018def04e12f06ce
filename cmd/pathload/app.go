package main

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/pathload/internal/cfg"
	"github.com/keithlinneman/pathload/internal/log"
	"github.com/keithlinneman/pathload/internal/metrics"
	"github.com/keithlinneman/pathload/internal/otelx"
	"github.com/keithlinneman/pathload/internal/pathload"
	v "github.com/keithlinneman/pathload/internal/version"
	"github.com/keithlinneman/pathload/internal/xerrors"
)

type app struct {
	conf         cfg.App
	logger       log.Logger
	loader       *pathload.Loader
	metrics      *metrics.LoadMetrics
	shutdownOTEL func(context.Context) error
}

func newApp(ctx context.Context, conf cfg.App, L log.Logger) (*app, error) {
	// insecure because the collector is expected on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  v.Get().Version,
	})
	if err != nil {
		// tracing is optional, keep going without it
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL, _ = otelx.Init(ctx, otelx.Options{})
	}

	m := metrics.New()
	m.SetBuildInfo(v.Get())

	opts := []pathload.LoaderOption{
		pathload.WithLogger(L),
		pathload.WithMetrics(m),
	}
	if conf.BaseDir != "" {
		opts = append(opts, pathload.WithBaseDir(conf.BaseDir))
	}
	if conf.Rate > 0 {
		opts = append(opts, pathload.WithRateLimiter(rate.NewLimiter(rate.Limit(conf.Rate), conf.Burst)))
	}
	if conf.EnableAWS {
		var loadOpts []func(*config.LoadOptions) error
		if conf.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(conf.AWSRegion))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			_ = shutdownOTEL(context.Background())
			return nil, xerrors.Wrap(err, "load AWS config")
		}
		opts = append(opts,
			pathload.WithS3Client(s3.NewFromConfig(awsCfg)),
			pathload.WithSSMClient(ssm.NewFromConfig(awsCfg)),
		)
	}

	return &app{
		conf:         conf,
		logger:       L,
		loader:       pathload.New(opts...),
		metrics:      m,
		shutdownOTEL: shutdownOTEL,
	}, nil
}

// loadOptions translates the per-target flags into load options.
func (a *app) loadOptions() []pathload.Option {
	opts := []pathload.Option{pathload.WithMethod(a.conf.Method)}
	for _, h := range a.conf.Headers {
		// validated by cfg
		k, val, _ := cfg.SplitHeader(h)
		opts = append(opts, pathload.WithHeader(k, val))
	}
	if a.conf.BasicAuth != "" {
		user, pass := splitBasicAuth(a.conf.BasicAuth)
		opts = append(opts, pathload.WithBasicAuth(user, pass))
	}
	if a.conf.Encoding != "" {
		opts = append(opts, pathload.WithEncoding(a.conf.Encoding))
	}
	return opts
}

// loadAll starts every target at once and writes the contents in argument
// order. It returns how many targets failed.
func (a *app) loadAll(ctx context.Context, targets []string, w io.Writer) int {
	type pending struct {
		target string
		future *pathload.Future
		cancel context.CancelFunc
	}

	opts := a.loadOptions()
	all := make([]pending, 0, len(targets))
	for _, t := range targets {
		tctx, cancel := ctx, context.CancelFunc(func() {})
		if a.conf.Timeout > 0 {
			tctx, cancel = context.WithTimeout(ctx, a.conf.Timeout)
		}
		all = append(all, pending{target: t, future: a.loader.LoadAsync(tctx, t, opts...), cancel: cancel})
	}

	failed := 0
	for _, p := range all {
		text, err := p.future.Wait(ctx)
		p.cancel()
		if err != nil {
			failed++
			kv := []any{"target", p.target, "outcome", pathload.Outcome(err)}
			if code := pathload.StatusCode(err); code != 0 {
				kv = append(kv, "status", code)
			}
			a.logger.Error(ctx, err, "load failed", kv...)
			continue
		}
		if _, err := io.WriteString(w, text); err != nil {
			a.logger.Error(ctx, xerrors.Wrap(err, "write output"), "write failed", "target", p.target)
			failed++
		}
	}
	return failed
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.shutdownOTEL(ctx); err != nil {
		a.logger.Error(ctx, err, "otel shutdown")
	}
}
