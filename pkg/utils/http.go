package utils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ahmad-20th/GrayTera/pkg/config"
)

// HTTPClient is the shared HTTP client used by the detection strategies
// and the extraction oracle. It measures request timing precisely, which
// the time-blind paths depend on.
type HTTPClient struct {
	client    *http.Client
	config    *config.TargetConfig
	userAgent string
	logger    zerolog.Logger

	limiter *rate.Limiter
	retry   RetryPolicy

	// Request tracking
	requestCount atomic.Int64
	totalTime    atomic.Int64
}

// HTTPResponse carries the full body and timing metadata for one exchange
type HTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"-"`

	// Timing information
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Request information
	RequestURL    string `json:"request_url"`
	RequestMethod string `json:"request_method"`
}

// ElapsedMS returns the round-trip time in whole milliseconds
func (r *HTTPResponse) ElapsedMS() int64 {
	return r.Duration.Milliseconds()
}

// HTTPError represents a classified network failure
type HTTPError struct {
	URL        string        `json:"url"`
	Method     string        `json:"method"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Message    string        `json:"message"`
	ErrorType  string        `json:"error_type"` // timeout, connection_refused, dns, tls, etc.
	Retries    int           `json:"retries"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s %s failed: %s (type: %s, retries: %d)",
		e.Method, e.URL, e.Message, e.ErrorType, e.Retries)
}

// ClientOption customizes an HTTPClient at construction
type ClientOption func(*HTTPClient)

// WithLogger attaches a structured logger to the client
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		hc.logger = logger
	}
}

// WithRetryPolicy overrides the client's retry behavior
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(hc *HTTPClient) {
		hc.retry = policy
	}
}

// NewHTTPClient creates the HTTP client shared across the engine
func NewHTTPClient(targetConfig *config.TargetConfig, engineConfig *config.EngineConfig, opts ...ClientOption) (*HTTPClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
	}

	tlsConfig, err := createTLSConfig(targetConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	transport.TLSClientConfig = tlsConfig

	client := &http.Client{
		Transport: transport,
		Timeout:   engineConfig.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	limit := rate.Inf
	if engineConfig.RateLimit > 0 {
		limit = rate.Limit(engineConfig.RateLimit)
	}

	hc := &HTTPClient{
		client:    client,
		config:    targetConfig,
		userAgent: "GrayTera/1.0 Security Scanner",
		logger:    zerolog.Nop(),
		limiter:   rate.NewLimiter(limit, 1),
		retry:     NewRetryPolicy(engineConfig.MaxRetries, engineConfig.RetryDelay),
	}

	for _, opt := range opts {
		opt(hc)
	}

	return hc, nil
}

// Get performs an HTTP GET request
func (hc *HTTPClient) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	return hc.Do(ctx, "GET", url, "", nil)
}

// Post performs an HTTP POST request with a form-encoded body
func (hc *HTTPClient) Post(ctx context.Context, url string, body string, headers map[string]string) (*HTTPResponse, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}
	return hc.Do(ctx, "POST", url, body, headers)
}

// Do performs an HTTP request with rate limiting and retry logic.
// Retried requests re-measure timing from scratch so that a slow
// first attempt cannot pollute a time-blind sample.
func (hc *HTTPClient) Do(ctx context.Context, method, url string, body string, headers map[string]string) (*HTTPResponse, error) {
	if err := hc.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 0; attempt < hc.retry.MaxAttempts; attempt++ {
		var bodyReader io.Reader
		if body != "" {
			bodyReader = strings.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, &HTTPError{
				URL:       url,
				Method:    method,
				Message:   err.Error(),
				ErrorType: "request_creation",
				Retries:   attempt,
			}
		}

		hc.setRequestHeaders(req, headers)

		startTime := time.Now()
		resp, err := hc.client.Do(req)
		endTime := time.Now()
		duration := endTime.Sub(startTime)

		hc.requestCount.Add(1)
		hc.totalTime.Add(int64(duration))

		if err != nil {
			errorType := classifyHTTPError(err)
			lastErr = &HTTPError{
				URL:       url,
				Method:    method,
				Duration:  duration,
				Message:   err.Error(),
				ErrorType: errorType,
				Retries:   attempt,
			}

			hc.logger.Debug().
				Str("method", method).
				Str("url", url).
				Str("error_type", errorType).
				Int("attempt", attempt).
				Msg("request failed")

			if hc.retry.ShouldRetry(errorType, attempt) {
				if werr := hc.retry.Wait(ctx, attempt); werr != nil {
					return nil, werr
				}
				continue
			}

			return nil, lastErr
		}

		result, err := hc.readResponse(resp, req, startTime, endTime)
		if err != nil {
			return nil, err
		}

		return result, nil
	}

	return nil, lastErr
}

// setRequestHeaders sets the default, target and per-request headers
func (hc *HTTPClient) setRequestHeaders(req *http.Request, additionalHeaders map[string]string) {
	req.Header.Set("User-Agent", hc.userAgent)

	for key, value := range hc.config.Headers {
		req.Header.Set(key, value)
	}

	for key, value := range additionalHeaders {
		req.Header.Set(key, value)
	}

	hc.addAuthentication(req)

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if req.Header.Get("Connection") == "" {
		req.Header.Set("Connection", "keep-alive")
	}
}

// addAuthentication adds authentication headers based on configuration
func (hc *HTTPClient) addAuthentication(req *http.Request) {
	switch hc.config.Auth.Type {
	case "basic":
		if hc.config.Auth.Username != "" && hc.config.Auth.Password != "" {
			req.SetBasicAuth(hc.config.Auth.Username, hc.config.Auth.Password)
		}
	case "bearer":
		if hc.config.Auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+hc.config.Auth.Token)
		}
	case "custom":
		for key, value := range hc.config.Auth.CustomHeaders {
			req.Header.Set(key, value)
		}
	}
}

// readResponse drains the body and captures timing metadata. Detection
// needs the complete body, not a preview, to match error signatures and
// reflected markers anywhere in the page.
func (hc *HTTPClient) readResponse(resp *http.Response, req *http.Request, startTime, endTime time.Time) (*HTTPResponse, error) {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &HTTPResponse{
		StatusCode:    resp.StatusCode,
		Headers:       make(map[string]string),
		Body:          bodyBytes,
		StartTime:     startTime,
		EndTime:       endTime,
		Duration:      endTime.Sub(startTime),
		RequestURL:    req.URL.String(),
		RequestMethod: req.Method,
	}

	for key, values := range resp.Header {
		if len(values) > 0 {
			result.Headers[key] = values[0]
		}
	}

	return result, nil
}

// GetStats returns request count, average round-trip and requests/second
func (hc *HTTPClient) GetStats() (int64, time.Duration, float64) {
	count := hc.requestCount.Load()
	total := time.Duration(hc.totalTime.Load())

	if count == 0 || total == 0 {
		return 0, 0, 0
	}

	avgTime := total / time.Duration(count)
	requestsPerSecond := float64(count) / total.Seconds()

	return count, avgTime, requestsPerSecond
}

// Close closes the HTTP client and cleans up idle connections
func (hc *HTTPClient) Close() {
	hc.client.CloseIdleConnections()
}

// createTLSConfig creates TLS configuration based on target settings
func createTLSConfig(target *config.TargetConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: target.TLS.InsecureSkipVerify,
	}

	if target.TLS.MinVersion != "" {
		minVersion, err := parseTLSVersion(target.TLS.MinVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid min TLS version: %w", err)
		}
		tlsConfig.MinVersion = minVersion
	}

	if target.TLS.MaxVersion != "" {
		maxVersion, err := parseTLSVersion(target.TLS.MaxVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid max TLS version: %w", err)
		}
		tlsConfig.MaxVersion = maxVersion
	}

	if target.TLS.CACertPath != "" {
		caCert, err := os.ReadFile(target.TLS.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if target.TLS.ClientCertPath != "" && target.TLS.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(target.TLS.ClientCertPath, target.TLS.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// parseTLSVersion parses TLS version string to constant
func parseTLSVersion(version string) (uint16, error) {
	switch strings.ToUpper(version) {
	case "1.0", "TLS1.0":
		return tls.VersionTLS10, nil
	case "1.1", "TLS1.1":
		return tls.VersionTLS11, nil
	case "1.2", "TLS1.2":
		return tls.VersionTLS12, nil
	case "1.3", "TLS1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version: %s", version)
	}
}

// classifyHTTPError classifies network errors for retry logic
func classifyHTTPError(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context canceled"):
		return "canceled"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "connection refused"):
		return "connection_refused"
	case strings.Contains(errStr, "no such host"):
		return "dns"
	case strings.Contains(errStr, "tls"), strings.Contains(errStr, "certificate"):
		return "tls"
	default:
		return "unknown"
	}
}
