package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Static errors for OpenAI client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("openai: API key is required")
	// ErrInvalidBaseURL is returned when the base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("openai: invalid base URL")
	// ErrTransport is returned when a request fails before a response is read.
	ErrTransport = errors.New("openai: transport error")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("openai: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("openai: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("openai: request failed")
	// ErrEmptyDownload is returned when a download yields no bytes.
	ErrEmptyDownload = errors.New("openai: download returned an empty body")
	// ErrCircuitOpen is returned while the breaker rejects requests after
	// repeated upstream failures.
	ErrCircuitOpen = errors.New("openai: circuit breaker open")
)

// HTTPClient talks to the OpenAI REST API.
type HTTPClient struct {
	apiKey      string
	project     string
	baseURL     *url.URL
	httpClient  *http.Client
	timeout     time.Duration
	dlTimeout   time.Duration
	maxRetries  int
	baseBackoff time.Duration
	breaker     *gobreaker.CircuitBreaker
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithProject sets the OpenAI-Project header sent with authenticated requests.
func WithProject(project string) ClientOption {
	return func(hc *HTTPClient) {
		hc.project = project
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithTimeout bounds each JSON or multipart attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		if d > 0 {
			hc.timeout = d
		}
	}
}

// WithDownloadTimeout bounds each download attempt, body transfer included.
func WithDownloadTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		if d > 0 {
			hc.dlTimeout = d
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithCircuitBreaker replaces the default breaker settings. Only transport
// failures, 5xx and 429 responses from the API host count against the
// breaker; downloads from other hosts bypass it.
func WithCircuitBreaker(st gobreaker.Settings) ClientOption {
	return func(hc *HTTPClient) {
		hc.breaker = newBreaker(st)
	}
}

// DefaultBreakerSettings trips after five consecutive upstream failures and
// probes again after thirty seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	st.IsSuccessful = func(err error) bool {
		return err == nil || !isRetryable(err)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Default attempt deadlines.
const (
	DefaultTimeout         = 120 * time.Second
	DefaultDownloadTimeout = 30 * time.Minute
)

// NewClient creates a new OpenAI HTTP client rooted at baseURL.
// An empty baseURL selects DefaultBaseURL. The API key must be provided
// with WithAPIKey.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &HTTPClient{
		baseURL:     parsed,
		httpClient:  &http.Client{},
		timeout:     DefaultTimeout,
		dlTimeout:   DefaultDownloadTimeout,
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
		breaker:     newBreaker(DefaultBreakerSettings()),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// URL joins escaped path segments onto the base URL.
func (c *HTTPClient) URL(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return u.String()
}

// PostJSON sends payload as JSON to path and decodes the JSON object reply.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	var result map[string]any
	err = c.doRequestWithRetry(ctx, true, func() error {
		return c.doJSON(ctx, http.MethodPost, c.resolve(path, nil), "application/json", body, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetJSON fetches path with optional query parameters and decodes the JSON object reply.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	var result map[string]any
	err := c.doRequestWithRetry(ctx, true, func() error {
		return c.doJSON(ctx, http.MethodGet, c.resolve(path, query), "", nil, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostMultipart sends a multipart form with the given fields and file.
func (c *HTTPClient) PostMultipart(ctx context.Context, path string, fields map[string]string, file FilePart) (map[string]any, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("openai: write form field %s: %w", k, err)
		}
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.FieldName, file.FileName))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("openai: create file part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("openai: write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("openai: close multipart writer: %w", err)
	}

	body := buf.Bytes()
	var result map[string]any
	err = c.doRequestWithRetry(ctx, true, func() error {
		return c.doJSON(ctx, http.MethodPost, c.resolve(path, nil), mw.FormDataContentType(), body, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Download fetches rawURL and writes the body to destPath.
// Authorization headers are only attached when rawURL points at the API host.
// The body is streamed to a temporary file next to destPath and renamed on
// success, so a failed transfer never leaves a partial file behind.
func (c *HTTPClient) Download(ctx context.Context, rawURL, destPath string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("openai: create download request: %w", err)
	}
	apiHost := c.sameHost(u)
	return c.doRequestWithRetry(ctx, apiHost, func() error {
		return c.download(ctx, rawURL, destPath, apiHost)
	})
}

func (c *HTTPClient) download(ctx context.Context, rawURL, destPath string, apiHost bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.dlTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("openai: create download request: %w", err)
	}
	if apiHost {
		c.applyDefaultHeaders(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: download: %w", ErrTransport, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return fmt.Errorf("openai: create download directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("openai: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return &retryableError{err: fmt.Errorf("%w: copy download data: %w", ErrTransport, err)}
	}
	if n == 0 {
		_ = os.Remove(tmpName)
		return ErrEmptyDownload
	}

	if err := os.Rename(tmpName, destPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("openai: move download into place: %w", err)
	}
	return nil
}

// resolve builds an absolute URL for a path relative to the base URL.
func (c *HTTPClient) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *HTTPClient) sameHost(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func (c *HTTPClient) applyDefaultHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.project != "" {
		req.Header.Set("OpenAI-Project", c.project)
	}
}

// doRequestWithRetry runs fn with exponential backoff retry. Attempts go
// through the circuit breaker only when guarded is set.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, guarded bool, fn func() error) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("openai: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		var err error
		if guarded {
			err = c.execute(fn)
		} else {
			err = fn()
		}
		if err == nil {
			return nil
		}

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("openai: max retries exceeded: %w", lastErr)
}

// execute runs fn through the circuit breaker.
func (c *HTTPClient) execute(fn func() error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}

// doJSON performs a single HTTP request and decodes a JSON object reply.
func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL, contentType string, body []byte, result *map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return fmt.Errorf("openai: create request: %w", err)
	}

	c.applyDefaultHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: read response: %w", ErrTransport, err)}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		*result = map[string]any{}
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("openai: unmarshal response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response to an error, draining a bounded
// amount of the body for diagnostics.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	// 5xx errors are retryable
	if resp.StatusCode >= 500 {
		return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
	}
	// 429 (rate limit) is retryable
	if resp.StatusCode == http.StatusTooManyRequests {
		return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
	}
	return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
