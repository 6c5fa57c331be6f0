package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/config"
	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/metrics"
)

type args struct {
	config.Config

	Input       string `arg:"-i,--input" help:"read one request per line from FILE instead of stdin"`
	Follow      bool   `arg:"-f,--follow" help:"keep reading --input as it grows; with stdin, keep running after EOF until interrupted"`
	Raw         bool   `arg:"--raw" help:"events are decoded subscription payloads, not awslogs envelopes"`
	Check       string `arg:"--check" placeholder:"LOGGROUP" help:"probe the HEC endpoint of LOGGROUP and exit"`
	MetricsAddr string `arg:"--metrics-addr,env:METRICS_ADDR" help:"serve prometheus metrics on this address"`
	LogFile     string `arg:"--log-file,env:LOG_FILE" help:"write logs to a rotated file instead of stdout"`
}

func (args) Description() string {
	return "Feeds {event, context} JSON documents through the CloudWatch Logs to Splunk HEC pipeline."
}

func main() {
	var a args
	arg.MustParse(&a)

	l := logger.New(logger.Config{
		Level:      a.LogLevel,
		Path:       a.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	})
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := config.LoadAWS(ctx, a.Config)
	if err != nil {
		l.Fatal("unable to load AWS config", zap.Error(err))
	}

	m := metrics.New()
	rt, err := config.Build(a.Config, awsCfg, l, m)
	if err != nil {
		l.Fatal("failed to initialize pipeline", zap.Error(err))
	}
	defer rt.Close()

	if a.Check != "" {
		if err := rt.CheckHealth(ctx, a.Check); err != nil {
			l.Error("health check failed", zap.String("log_group", a.Check), zap.Error(err))
			_ = l.Sync()
			os.Exit(1)
		}
		l.Info("HEC endpoint is healthy", zap.String("log_group", a.Check))
		return
	}

	if a.MetricsAddr != "" {
		srv := &http.Server{Addr: a.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		l.Info("serving metrics", zap.String("addr", a.MetricsAddr))
	}

	in := make(chan []byte)
	go func() {
		var err error
		if a.Input != "" {
			err = readFile(ctx, a.Input, a.Follow, l, in)
		} else {
			err = readStream(ctx, os.Stdin, a.Follow, in)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("input stopped", zap.Error(err))
		}
	}()

	handled, failed := serve(ctx, rt.Pipeline, in, a.Raw, l)
	l.Info("done", zap.Int("requests", handled), zap.Int("failed", failed))
}
