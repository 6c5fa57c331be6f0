package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// TTL is a cache lifetime given either as a Go duration ("6m") or as a bare
// number of milliseconds ("360000").
type TTL time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TTL) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*t = 0
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return fmt.Errorf("negative cache ttl: %s", s)
		}
		*t = TTL(time.Duration(ms) * time.Millisecond)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid cache ttl %q: %w", s, err)
	}
	if d < 0 {
		return fmt.Errorf("negative cache ttl: %s", s)
	}
	*t = TTL(d)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (t TTL) MarshalText() ([]byte, error) {
	return []byte(time.Duration(t).String()), nil
}

// Duration returns t as a time.Duration
func (t TTL) Duration() time.Duration { return time.Duration(t) }

// Config is shared by the lambda and local commands
type Config struct {
	Region     string `arg:"env:AWS_REGION" default:"us-east-1"`
	SSMPrefix  string `arg:"--ssm-prefix,env:SSM_PREFIX" default:"/cloudwatch_to_splunk" help:"parameter store path prefix"`
	CacheTTL   TTL    `arg:"--cache-ttl,env:SPLUNK_CACHE_TTL" default:"6m" help:"delivery config cache lifetime, duration or milliseconds; 0 disables"`
	LogLevel   string `arg:"--log-level,env:LOG_LEVEL" help:"DEBUG, INFO, WARNING, ERROR or CRITICAL"`
	ParamsFile string `arg:"--params-file,env:PARAMS_FILE" help:"YAML parameter file used instead of SSM"`

	HECTimeout              time.Duration `arg:"--hec-timeout,env:HEC_TIMEOUT" default:"10s"`
	HECTLSSkipVerify        bool          `arg:"--hec-tls-skip-verify,env:HEC_TLS_SKIP_VERIFY" default:"false"`
	HECProxy                string        `arg:"--hec-proxy,env:HEC_PROXY"`
	HECChannelID            string        `arg:"--hec-channel-id,env:HEC_CHANNEL_ID" help:"request channel UUID; random when empty"`
	HECTokenQualifier       string        `arg:"--hec-token-qualifier,env:HEC_TOKEN_QUALIFIER" help:"token prefix for the Authorization header, e.g. dsphec"`
	HECMaxRetries           uint64        `arg:"--hec-max-retries,env:HEC_MAX_RETRIES" default:"3"`
	HECRetryInitialInterval time.Duration `arg:"--hec-retry-initial-interval,env:HEC_RETRY_INITIAL_INTERVAL" default:"500ms"`
	HECRetryMaxInterval     time.Duration `arg:"--hec-retry-max-interval,env:HEC_RETRY_MAX_INTERVAL" default:"5s"`

	S3URL             string `arg:"--s3-url,env:S3_URL" help:"failure archive, example: https://YOURBUCKET.s3.ap-southeast-2.amazonaws.com/YOURFOLDER/"`
	S3AccessKeyID     string `arg:"--s3-access-key-id,env:S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string `arg:"--s3-access-key-secret,env:S3_ACCESS_KEY_SECRET"`
}

// LoadAWS loads the default AWS config for the configured region
func LoadAWS(ctx context.Context, cfg Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// archiveAWSConfig uses the static S3 credentials when both are set, and
// the default chain (usually the function role) otherwise.
func archiveAWSConfig(base aws.Config, cfg Config) aws.Config {
	if cfg.S3AccessKeyID == "" || cfg.S3AccessKeySecret == "" {
		return base
	}
	out := base.Copy()
	out.Credentials = aws.NewCredentialsCache(
		credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3AccessKeySecret, ""),
	)
	return out
}
