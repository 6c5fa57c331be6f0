package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/hec"
	"github.com/mosajjal/cwlogs2hec/pkg/metrics"
	"github.com/mosajjal/cwlogs2hec/pkg/params"
	"github.com/mosajjal/cwlogs2hec/pkg/pipeline"
	awsprovider "github.com/mosajjal/cwlogs2hec/pkg/provider/aws"
	"github.com/mosajjal/cwlogs2hec/pkg/storage"
	s3storage "github.com/mosajjal/cwlogs2hec/pkg/storage/s3"
)

// Runtime is everything an entry point needs, built once at process start
type Runtime struct {
	Pipeline *pipeline.Pipeline
	Resolver *params.Resolver
	Client   *hec.Client
	Archive  storage.Archive
}

// Close releases the archive backend
func (r *Runtime) Close() error {
	if r.Archive == nil {
		return nil
	}
	return r.Archive.Close()
}

// RetrySettings returns the HEC retry policy
func (c Config) RetrySettings() hec.RetrySettings {
	return hec.RetrySettings{
		MaxRetries:      c.HECMaxRetries,
		InitialInterval: c.HECRetryInitialInterval,
		MaxInterval:     c.HECRetryMaxInterval,
	}
}

func (c Config) parameterStore(awsCfg aws.Config) (params.ParameterStore, error) {
	if c.ParamsFile != "" {
		fs, err := params.LoadFile(c.ParamsFile, c.SSMPrefix)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// Build wires the pipeline from cfg
func Build(cfg Config, awsCfg aws.Config, l *zap.Logger, m *metrics.Metrics) (*Runtime, error) {
	if l == nil {
		l = zap.NewNop()
	}

	store, err := cfg.parameterStore(awsCfg)
	if err != nil {
		return nil, err
	}
	if cfg.ParamsFile != "" {
		l.Info("using parameter file instead of SSM", zap.String("path", cfg.ParamsFile))
	}

	resolver := params.NewResolver(store, params.Options{
		Prefix:   cfg.SSMPrefix,
		CacheTTL: cfg.CacheTTL.Duration(),
		Secrets:  secretsmanager.NewFromConfig(awsCfg),
		Logger:   l,
		Metrics:  m,
	})

	client, err := hec.NewClient(hec.Config{
		TLSSkipVerify:  cfg.HECTLSSkipVerify,
		Proxy:          cfg.HECProxy,
		Timeout:        cfg.HECTimeout,
		ChannelID:      cfg.HECChannelID,
		TokenQualifier: cfg.HECTokenQualifier,
		Logger:         l,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HEC client: %w", err)
	}

	var archive storage.Archive
	if cfg.S3URL != "" {
		s, err := s3storage.NewStorage(storage.StorageConfig{Provider: "s3", URL: cfg.S3URL}, archiveAWSConfig(awsCfg, cfg), l)
		if err != nil {
			return nil, fmt.Errorf("failed to setup failure storage: %w", err)
		}
		archive = s
		l.Info("failure archive enabled", zap.String("bucket", s.Bucket()))
	} else {
		l.Info("no S3 URL is provided, undeliverable batches will not be archived")
	}

	p := pipeline.New(
		awsprovider.NewProvider(l),
		resolver,
		hec.NewRetrier(client, cfg.RetrySettings()),
		pipeline.Options{Archive: archive, Logger: l, Metrics: m},
	)

	l.Info("pipeline initialized",
		zap.String("ssm_prefix", cfg.SSMPrefix),
		zap.Duration("cache_ttl", cfg.CacheTTL.Duration()),
		zap.String("channel", client.ChannelID()),
		zap.Uint64("max_retries", cfg.HECMaxRetries))

	return &Runtime{Pipeline: p, Resolver: resolver, Client: client, Archive: archive}, nil
}

// CheckHealth resolves the config of logGroup and probes its HEC endpoint
func (r *Runtime) CheckHealth(ctx context.Context, logGroup string) error {
	dc, err := r.Resolver.Resolve(ctx, logGroup)
	if err != nil {
		return err
	}
	return r.Client.CheckHealth(dc)
}
