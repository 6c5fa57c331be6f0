package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/nxadm/tail"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/pipeline"
	awsprovider "github.com/mosajjal/cwlogs2hec/pkg/provider/aws"
)

// request is one harness input document
type request struct {
	Event   json.RawMessage `json:"event"`
	Context requestContext  `json:"context"`
}

// requestContext carries the invocation fields a Lambda context would
type requestContext struct {
	AwsRequestID       string `json:"aws_request_id"`
	InvokedFunctionArn string `json:"invoked_function_arn"`
}

// readStream decodes consecutive JSON documents from r until EOF or ctx is
// done. With follow set, EOF keeps the stream open until ctx is done. A
// document that is not valid JSON ends the stream.
func readStream(ctx context.Context, r io.Reader, follow bool, out chan<- []byte) error {
	defer close(out)
	dec := json.NewDecoder(r)
	for {
		var doc json.RawMessage
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				if follow {
					<-ctx.Done()
				}
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}
		select {
		case out <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readFile sends every non-empty line of path, following it when follow is set
func readFile(ctx context.Context, path string, follow bool, l *zap.Logger, out chan<- []byte) error {
	defer close(out)
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				l.Warn("error reading input", zap.String("path", path), zap.Error(line.Err))
				continue
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			select {
			case out <- []byte(text):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// process turns one harness document into an invocation of p
func process(ctx context.Context, p *pipeline.Pipeline, doc []byte, raw bool) (*pipeline.Result, error) {
	var req request
	if err := json.Unmarshal(doc, &req); err != nil {
		return nil, fmt.Errorf("invalid request document: %w", err)
	}
	if len(req.Event) == 0 {
		return nil, errors.New("request document has no event")
	}

	var event events.CloudwatchLogsEvent
	if raw {
		ev, err := awsprovider.EncodeRaw(req.Event)
		if err != nil {
			return nil, err
		}
		event = ev
	} else if err := json.Unmarshal(req.Event, &event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	lc := &lambdacontext.LambdaContext{
		AwsRequestID:       req.Context.AwsRequestID,
		InvokedFunctionArn: req.Context.InvokedFunctionArn,
	}
	if lc.AwsRequestID == "" {
		lc.AwsRequestID = uuid.New().String()
	}
	return p.Handle(lambdacontext.NewContext(ctx, lc), event)
}

// serve invokes p for each document until in is closed or ctx is done.
// Per-request errors are logged and do not stop the loop.
func serve(ctx context.Context, p *pipeline.Pipeline, in <-chan []byte, raw bool, l *zap.Logger) (handled, failed int) {
	for {
		select {
		case <-ctx.Done():
			return handled, failed
		case doc, ok := <-in:
			if !ok {
				return handled, failed
			}
			handled++
			l.Info("BEGIN REQUEST", zap.Int("count", handled))
			res, err := process(ctx, p, doc, raw)
			if err != nil {
				failed++
				l.Error("request failed", zap.Int("count", handled), zap.Error(err))
			} else {
				l.Debug("request handled", zap.Int("count", handled), zap.Int("events", res.Events), zap.Bool("skipped", res.Skipped))
			}
			l.Info("END REQUEST", zap.Int("count", handled))
		}
	}
}
