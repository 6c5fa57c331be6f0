package main

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/config"
	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/pipeline"
)

func newHandler(p *pipeline.Pipeline) func(context.Context, events.CloudwatchLogsEvent) (string, error) {
	return func(ctx context.Context, event events.CloudwatchLogsEvent) (string, error) {
		res, err := p.Handle(ctx, event)
		if err != nil {
			return "", err
		}
		if res.Skipped {
			return "SKIPPED", nil
		}
		return fmt.Sprintf("OK %d events", res.Events), nil
	}
}

func main() {
	var cfg config.Config
	arg.MustParse(&cfg)

	l := logger.New(logger.Config{Level: cfg.LogLevel})
	defer func() { _ = l.Sync() }()

	awsCfg, err := config.LoadAWS(context.Background(), cfg)
	if err != nil {
		l.Fatal("unable to load AWS config", zap.Error(err))
	}

	rt, err := config.Build(cfg, awsCfg, l, nil)
	if err != nil {
		l.Fatal("failed to initialize pipeline", zap.Error(err))
	}
	defer rt.Close()

	lambda.Start(newHandler(rt.Pipeline))
}
