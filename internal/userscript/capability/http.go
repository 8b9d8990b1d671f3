package capability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voyx/engine/internal/infrastructure/resilience"
)

// Request is the script-facing request shape, as produced by the shim's
// http.request call.
type Request struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	TimeoutMs int               `json:"timeout,omitempty"`
}

// Response is what the script's promise resolves with. Status 0 means
// the request never produced an HTTP response; Error carries the cause.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
	Error   string            `json:"error,omitempty"`
}

const (
	defaultRequestTimeout = 30 * time.Second
	maxRequestTimeout     = 2 * time.Minute
)

// Client guards script-originated HTTP with a rate limiter and a
// circuit breaker, on top of a retrying transport.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger

	mu sync.RWMutex
}

// NewClient builds the production client: 3 retries with backoff,
// 10 req/s per process, breaker tripping on sustained failure.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(defaultRequestTimeout).
		SetHeader("User-Agent", "VoyxEngine/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("userscript-http", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		breaker: breaker,
		logger:  logger,
	}
}

// SetRateLimit reconfigures requests per second; rps <= 0 removes the
// limit.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// BreakerState exposes the breaker for status reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Do runs one script request. Every failure path resolves to a Response
// with Status 0 and a message; scripts only ever see data.
func (c *Client) Do(ctx context.Context, req Request) Response {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}
	if req.URL == "" {
		return failed("url required")
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return failed("unsupported url scheme")
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return failed("rate limit: " + err.Error())
	}

	timeout := defaultRequestTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		if timeout > maxRequestTimeout {
			timeout = maxRequestTimeout
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		r := c.resty.R().SetContext(reqCtx)
		for k, v := range req.Headers {
			r.SetHeader(k, v)
		}
		if req.Body != "" {
			r.SetBody(req.Body)
		}
		return r.Execute(method, req.URL)
	})
	if err != nil {
		c.logger.Warn("userscript request failed",
			zap.String("method", method), zap.String("url", req.URL), zap.Error(err))
		return failed(err.Error())
	}

	resp := result.(*resty.Response)
	headers := make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return Response{
		Status:  resp.StatusCode(),
		Headers: headers,
		Body:    resp.String(),
	}
}

func failed(msg string) Response {
	return Response{Status: 0, Error: msg}
}
