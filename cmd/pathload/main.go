package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/keithlinneman/pathload/internal/cfg"
	"github.com/keithlinneman/pathload/internal/log"
	v "github.com/keithlinneman/pathload/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, loads every target and returns the process exit code:
// 0 when all loads succeed, 1 when any fails, 2 on usage or config errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(v.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] target...\n\n", v.AppName)
		fmt.Fprintln(stderr, "A target is a path, a file:// or http(s):// URL, or with -enable-aws an s3://bucket/key or ssm://name.")
		fmt.Fprintln(stderr, "Flags may also be set as PATHLOAD_<FLAG_NAME> environment variables.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	var conf cfg.App
	var showVersion bool
	cfg.Register(fs, &conf)
	fs.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		fmt.Fprintln(stdout, v.Get().String())
		return 0
	}

	cfg.FillFromEnv(fs, "PATHLOAD_", func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	lvl, _ := log.ParseLevel(conf.LogLevel)
	stLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	vi := v.Get()
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		Writer:            stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, "logger init error:", err)
		return 2
	}
	defer lg.Sync()
	L := lg.With("component", "cli")
	ctx = log.WithContext(ctx, L)

	L.Debug(ctx, "starting",
		"version", vi.Version,
		"commit", vi.Commit,
		"targets", fs.NArg(),
		"method", conf.Method,
		"timeout", conf.Timeout,
		"rate", conf.Rate,
		"enable_aws", conf.EnableAWS,
		"enable_tracing", conf.EnableTracing,
		"metrics_file", conf.MetricsFile,
	)

	app, err := newApp(ctx, conf, L)
	if err != nil {
		L.Error(ctx, err, "setup failed")
		return 2
	}
	defer app.close(context.Background())

	failed := app.loadAll(ctx, fs.Args(), stdout)

	if conf.MetricsFile != "" {
		if err := app.metrics.WriteTextfile(conf.MetricsFile); err != nil {
			L.Error(ctx, err, "write metrics file failed", "path", conf.MetricsFile)
		}
	}
	if failed > 0 {
		L.Warn(ctx, "some targets failed", "failed", failed, "total", fs.NArg())
		return 1
	}
	return 0
}

// splitBasicAuth splits user:password at the first colon.
func splitBasicAuth(s string) (user, pass string) {
	user, pass, _ = strings.Cut(s, ":")
	return user, pass
}
