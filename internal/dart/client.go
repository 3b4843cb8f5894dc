package dart

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrDocumentUnavailable marks a document the provider will never serve
// (missing file, no data, rejected parameters). Callers record the item and
// move on without burning retry budget.
var ErrDocumentUnavailable = errors.New("document unavailable")

// KeyError is the fatal-class failure: the configured API key is invalid,
// disabled or expired. The polling loop reacts with a long backoff instead
// of hammering the provider.
type KeyError struct {
	Status  string
	Message string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("provider api key error (status=%s): %s", e.Status, e.Message)
}

// maxPageCount is the provider's hard cap on page size.
const maxPageCount = 100

// retryableHTTPStatuses follow the provider's documented transient set.
var retryableHTTPStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// ListResponse is the decoded body of the list endpoint. The provider is
// loose about numeric fields, sending page counts as numbers or strings;
// both are accepted.
type ListResponse struct {
	Status     string
	Message    string
	List       []map[string]any
	TotalPage  int
	TotalCount int
}

// UnmarshalJSON tolerates the provider's mixed numeric encodings.
func (r *ListResponse) UnmarshalJSON(data []byte) error {
	var aux struct {
		Status     string           `json:"status"`
		Message    string           `json:"message"`
		List       []map[string]any `json:"list"`
		TotalPage  any              `json:"total_page"`
		TotalCount any              `json:"total_count"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Status = aux.Status
	r.Message = aux.Message
	r.List = aux.List
	r.TotalPage = coerceInt(aux.TotalPage)
	r.TotalCount = coerceInt(aux.TotalCount)
	return nil
}

func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// Config parameterizes the Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	BackoffFactor float64
	// HTTPClient overrides the default client, primarily for tests.
	HTTPClient *http.Client
}

// Client talks to the disclosure provider with bounded HTTP-level retries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient constructs a Client. Zero-valued knobs get the provider
// defaults (30s timeout, 5 attempts, backoff factor 1.2).
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1.2
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// FetchFilingsPage lists one page of filings for a single date. The
// provider's date-range filter degenerates to [date, date]. A nil error
// with a decoded response is the only success shape; any failure means
// "try again next cycle", never a fatal condition.
func (c *Client) FetchFilingsPage(ctx context.Context, date string, pageNo, pageCount int) (*ListResponse, error) {
	if pageCount <= 0 || pageCount > maxPageCount {
		pageCount = maxPageCount
	}
	q := url.Values{}
	q.Set("crtfc_key", c.cfg.APIKey)
	q.Set("bgn_de", date)
	q.Set("end_de", date)
	q.Set("page_no", strconv.Itoa(pageNo))
	q.Set("page_count", strconv.Itoa(pageCount))

	body, err := c.get(ctx, "/list.json", q)
	if err != nil {
		return nil, fmt.Errorf("fetch filings page %d for %s: %w", pageNo, date, err)
	}

	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode filings page %d for %s: %w", pageNo, date, err)
	}
	return &resp, nil
}

// documentEnvelope is the provider's XML error body on the document
// endpoint, returned in place of a ZIP when the document cannot be served.
type documentEnvelope struct {
	Status  string `xml:"status"`
	Message string `xml:"message"`
}

// FetchDocument downloads a filing's raw document container. Success is a
// ZIP payload. Non-ZIP payloads are parsed as the provider's XML error
// envelope: no-retry statuses yield ErrDocumentUnavailable, key-class
// statuses yield *KeyError, and anything else is logged and treated as
// unavailable.
func (c *Client) FetchDocument(ctx context.Context, receiptNo string) ([]byte, error) {
	q := url.Values{}
	q.Set("crtfc_key", c.cfg.APIKey)
	q.Set("rcept_no", receiptNo)

	body, err := c.get(ctx, "/document.xml", q)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", receiptNo, err)
	}

	if bytes.HasPrefix(body, []byte("PK\x03\x04")) {
		return body, nil
	}

	var env documentEnvelope
	if err := xml.Unmarshal(body, &env); err != nil || env.Status == "" {
		c.logger.Warn("document payload is neither ZIP nor error envelope",
			zap.String("rcept_no", receiptNo),
			zap.Int("bytes", len(body)),
		)
		return nil, fmt.Errorf("%w: unrecognized payload", ErrDocumentUnavailable)
	}

	if _, ok := noRetryDocumentStatuses[env.Status]; ok {
		return nil, fmt.Errorf("%w: status=%s message=%s", ErrDocumentUnavailable, env.Status, env.Message)
	}
	if IsKeyStatus(env.Status) {
		return nil, &KeyError{Status: env.Status, Message: env.Message}
	}

	c.logger.Warn("unclassified document error status",
		zap.String("rcept_no", receiptNo),
		zap.String("status", env.Status),
		zap.String("message", env.Message),
	)
	return nil, fmt.Errorf("%w: status=%s message=%s", ErrDocumentUnavailable, env.Status, env.Message)
}

// get performs one GET with bounded retries: transport errors and the
// retryable HTTP status set back off exponentially (factor * 2^(n-1)),
// honoring Retry-After when the provider sends one.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	fullURL := c.cfg.BaseURL + endpoint + "?" + query.Encode()

	var lastErr error
	var retryAfter time.Duration

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			wait := c.backoff(attempt - 1)
			if retryAfter > 0 {
				wait = retryAfter
				retryAfter = 0
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Debug("request transport error", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if _, retryable := retryableHTTPStatuses[resp.StatusCode]; retryable {
			lastErr = fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			c.logger.Debug("retryable provider response",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Int("http_status", resp.StatusCode),
			)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) backoff(retry int) time.Duration {
	seconds := c.cfg.BackoffFactor * math.Pow(2, float64(retry-1))
	return time.Duration(seconds * float64(time.Second))
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
