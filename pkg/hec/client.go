package hec

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/metrics"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

const (
	// DefaultTimeout bounds a single POST including reading the response.
	DefaultTimeout = 10 * time.Second

	collectorPath = "/services/collector"
	contentType   = "application/json; charset=utf8"

	// HEC answers are tiny; anything past this is not worth keeping.
	maxResponseBody = 64 << 10
)

// Config holds HEC client configuration
type Config struct {
	TLSSkipVerify bool
	Proxy         string
	Timeout       time.Duration
	ChannelID     string

	// TokenQualifier is sent before the token, as in "Splunk dsphec:<token>".
	TokenQualifier string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Client posts batches to HEC endpoints. The endpoint and token come with
// every call, so one client serves all log groups.
type Client struct {
	httpClient *http.Client
	channelID  string
	qualifier  string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Response is the body HEC returns on success
type Response struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

// Result describes one delivery. Body and Events are populated even when
// delivery fails.
type Result struct {
	StatusCode int
	Response   Response
	Events     int
	Attempts   int
	Body       []byte
}

// NewClient creates a new HEC client
func NewClient(cfg Config) (*Client, error) {
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	channelID := cfg.ChannelID
	if _, err := uuid.Parse(channelID); err != nil {
		channelID = uuid.New().String()
	}

	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}

	return &Client{
		httpClient: httpClient,
		channelID:  channelID,
		qualifier:  cfg.TokenQualifier,
		logger:     l,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rt := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		rt.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}, nil
}

// ChannelID returns the request channel sent with every POST.
func (c *Client) ChannelID() string {
	return c.channelID
}

// CollectorURL appends the collector path to endpoints that only name a host.
func CollectorURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || strings.Trim(u.Path, "/") != "" {
		return endpoint
	}
	return strings.TrimRight(endpoint, "/") + collectorPath
}

func (c *Client) authorization(token string) string {
	if c.qualifier == "" {
		return "Splunk " + token
	}
	return "Splunk " + c.qualifier + ":" + token
}

// Prepare builds and encodes the documents for batch.
func (c *Client) Prepare(batch *models.LogBatch, dc *models.DeliveryConfig) (*Result, error) {
	docs := BuildDocuments(batch, dc.SourceType, c.now())
	body, err := EncodeDocuments(docs)
	if err != nil {
		return nil, err
	}
	return &Result{Events: len(docs), Body: body}, nil
}

// Send delivers batch to the endpoint in dc with a single POST.
func (c *Client) Send(ctx context.Context, batch *models.LogBatch, dc *models.DeliveryConfig) (*Result, error) {
	res, err := c.Prepare(batch, dc)
	if err != nil {
		return nil, err
	}
	return res, c.Post(ctx, dc, res)
}

// Post sends res.Body once and records the outcome in res.
func (c *Client) Post(ctx context.Context, dc *models.DeliveryConfig, res *Result) error {
	l := logger.FromContext(ctx, c.logger)
	endpoint := CollectorURL(dc.HECEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("invalid HEC endpoint %q: %w", endpoint, err)
	}
	req.Header.Set("Authorization", c.authorization(dc.HECToken))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Splunk-Request-Channel", c.channelID)

	if ce := l.Check(zap.DebugLevel, "ingest data"); ce != nil {
		ce.Write(zap.Strings("documents", strings.Split(strings.TrimRight(string(res.Body), "\n"), "\n")))
	}

	res.Attempts++
	c.metrics.Attempt()
	l.Info("POST", zap.String("url", endpoint), zap.Int("events", res.Events), zap.Int("attempt", res.Attempts))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		l.Error("HEC request failed", zap.String("url", endpoint), zap.Error(err))
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		l.Error("failed to read HEC response", zap.Int("status_code", resp.StatusCode), zap.Error(err))
		return &TransientError{Err: err}
	}

	// Splunk accepts all 2XX codes.
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.Unmarshal(respBody, &res.Response); err != nil {
			l.Warn("unparseable HEC response body", zap.Int("status_code", resp.StatusCode), zap.ByteString("body", respBody))
		}
		logger.Dump(l, zap.InfoLevel, "response", res.Response)
		return nil
	}

	rejected := &RejectedError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       string(respBody),
		RetryAfter: parseRetryAfter(resp),
	}
	l.Error("HEC rejected request",
		zap.Int("status_code", resp.StatusCode),
		zap.String("reason", http.StatusText(resp.StatusCode)),
		zap.Any("headers", rejected.Header),
		zap.String("body", rejected.Body))
	return rejected
}
