package params

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/metrics"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// DefaultPrefix is prepended to every log group when building parameter names.
const DefaultPrefix = "/cloudwatch_to_splunk"

// Parameter keys required for every log group
const (
	KeyHECEndpoint = "hec_endpoint"
	KeyHECToken    = "hec_token"
	KeySourceType  = "sourcetype"
)

// RequiredKeys lists the keys in the order they are requested.
var RequiredKeys = []string{KeyHECEndpoint, KeyHECToken, KeySourceType}

// NoValueSet is the placeholder value the console shows for unset parameters.
const NoValueSet = "*** NO VALUE SET ***"

// ParameterStore is the subset of the SSM API used by the resolver.
// *ssm.Client satisfies it.
type ParameterStore interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// ConfigMissingError reports the keys a log group has no usable value for
type ConfigMissingError struct {
	LogGroup string
	Keys     []string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("log group %q: parameters not set: %s (required: %s)",
		e.LogGroup, strings.Join(e.Keys, ", "), strings.Join(RequiredKeys, ", "))
}

// Options configures a Resolver
type Options struct {
	Prefix string
	// CacheTTL of zero disables caching
	CacheTTL time.Duration
	Secrets  SecretsAPI
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Resolver produces DeliveryConfig values for log groups
type Resolver struct {
	store   ParameterStore
	secrets SecretsAPI
	prefix  string
	cache   *gocache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a resolver backed by store
func NewResolver(store ParameterStore, opts Options) *Resolver {
	r := &Resolver{
		store:   store,
		secrets: opts.Secrets,
		prefix:  opts.Prefix,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if r.prefix == "" {
		r.prefix = DefaultPrefix
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if opts.CacheTTL > 0 {
		r.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return r
}

// ParameterBase returns {prefix}{logGroup} without a trailing slash.
func ParameterBase(prefix, logGroup string) string {
	return strings.TrimRight(prefix+logGroup, "/")
}

// ParameterName returns the full parameter path of key for logGroup.
func ParameterName(prefix, logGroup, key string) string {
	return ParameterBase(prefix, logGroup) + "/" + key
}

// Resolve returns the delivery config for logGroup, from cache when possible
func (r *Resolver) Resolve(ctx context.Context, logGroup string) (*models.DeliveryConfig, error) {
	l := logger.FromContext(ctx, r.logger).With(zap.String("log_group", logGroup))

	if r.cache != nil {
		if v, ok := r.cache.Get(logGroup); ok {
			r.metrics.CacheHit()
			cfg := v.(models.DeliveryConfig)
			l.Debug("delivery config served from cache")
			return &cfg, nil
		}
		r.metrics.CacheMiss()
	}

	cfg, err := r.fetch(ctx, l, logGroup)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(logGroup, *cfg, gocache.DefaultExpiration)
	}
	return cfg, nil
}

// Invalidate drops any cached config for logGroup.
func (r *Resolver) Invalidate(logGroup string) {
	if r.cache != nil {
		r.cache.Delete(logGroup)
	}
}

func (r *Resolver) fetch(ctx context.Context, l *zap.Logger, logGroup string) (*models.DeliveryConfig, error) {
	base := ParameterBase(r.prefix, logGroup)
	names := make([]string, 0, len(RequiredKeys))
	for _, key := range RequiredKeys {
		names = append(names, base+"/"+key)
	}
	logger.Dump(l, zap.DebugLevel, "ssm_param_names", names)

	out, err := r.store.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters for log group %q: %w", logGroup, err)
	}
	l.Debug("parameter store response",
		zap.Int("parameters", len(out.Parameters)),
		zap.Strings("invalid_parameters", out.InvalidParameters))

	values := make(map[string]string, len(RequiredKeys))
	for _, p := range out.Parameters {
		name := aws.ToString(p.Name)
		key := strings.TrimPrefix(name, base+"/")
		if !isRequired(key) {
			l.Warn("ignoring unexpected parameter", zap.String("name", name))
			continue
		}
		value := aws.ToString(p.Value)
		if value == "" || value == NoValueSet {
			continue
		}
		values[key] = value
	}

	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		err := &ConfigMissingError{LogGroup: logGroup, Keys: missing}
		l.Error("some parameters not set", zap.Strings("missing", missing), zap.Strings("required", RequiredKeys))
		return nil, err
	}

	token, err := r.resolveToken(ctx, l, values[KeyHECToken])
	if err != nil {
		return nil, fmt.Errorf("log group %q: %w", logGroup, err)
	}

	cfg := &models.DeliveryConfig{
		HECEndpoint: values[KeyHECEndpoint],
		HECToken:    token,
		SourceType:  values[KeySourceType],
	}
	logger.Dump(l, zap.DebugLevel, "delivery_config", cfg)
	return cfg, nil
}

func isRequired(key string) bool {
	for _, k := range RequiredKeys {
		if k == key {
			return true
		}
	}
	return false
}
