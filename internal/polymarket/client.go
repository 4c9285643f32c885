package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"smartmoney-tracker/config"
)

// ErrNotFound marks a 404 from the upstream. Callers treat it as
// "absent", never as a failure.
var ErrNotFound = errors.New("not found upstream")

// APIError is returned when a request fails after all retries.
type APIError struct {
	Class      EndpointClass
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("polymarket %s request failed: status=%d %s", e.Class, e.StatusCode, e.Message)
}

type ctxKey int

const classCtxKey ctxKey = 0

// Client is the rate-limited, retrying HTTP client for the gamma and
// data APIs. All adapter methods in adapters.go go through do().
type Client struct {
	gamma   *resty.Client
	data    *resty.Client
	limiter *Limiter
	metrics *Metrics
	log     zerolog.Logger
}

func NewClient(cfg config.PolymarketConfig, limiter *Limiter, metrics *Metrics, log zerolog.Logger) *Client {
	c := &Client{
		limiter: limiter,
		metrics: metrics,
		log:     log.With().Str("component", "polymarket").Logger(),
	}
	c.gamma = c.newRestyClient(cfg, cfg.GammaBaseURL)
	c.data = c.newRestyClient(cfg, cfg.DataBaseURL)
	return c
}

func (c *Client) newRestyClient(cfg config.PolymarketConfig, baseURL string) *resty.Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolConnections,
		MaxIdleConnsPerHost: cfg.PoolMaxSize,
		IdleConnTimeout:     90 * time.Second,
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTransport(transport).
		SetTimeout(time.Duration(cfg.DefaultTimeoutSeconds) * time.Second).
		SetRetryCount(cfg.MaxRetryAttempts - 1).
		SetRetryWaitTime(time.Duration(cfg.RetryMinWaitSeconds) * time.Second).
		SetRetryMaxWaitTime(time.Duration(cfg.RetryMaxWaitSeconds) * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			class := ClassGeneral
			if r != nil && r.Request != nil {
				if v, ok := r.Request.Context().Value(classCtxKey).(EndpointClass); ok {
					class = v
				}
			}
			c.metrics.RetryAttempts.WithLabelValues(string(class)).Inc()
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
}

// do runs one GET under the class limiter and decodes the JSON body
// into out. A 404 returns ErrNotFound with out untouched.
func (c *Client) do(ctx context.Context, class EndpointClass, base *resty.Client, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx, class); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", class, err)
	}

	label := string(class)
	c.metrics.InFlight.WithLabelValues(label).Inc()
	start := time.Now()
	defer func() {
		c.metrics.InFlight.WithLabelValues(label).Dec()
		c.metrics.RequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	reqCtx := context.WithValue(ctx, classCtxKey, class)
	req := base.R().SetContext(reqCtx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		c.metrics.Requests.WithLabelValues(label, ResultError).Inc()
		return &APIError{Class: class, StatusCode: 0, Message: err.Error()}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		c.metrics.Requests.WithLabelValues(label, ResultNotFound).Inc()
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		c.metrics.Requests.WithLabelValues(label, ResultRateLimited).Inc()
		return &APIError{Class: class, StatusCode: status, Message: "rate limited after retries"}
	case status >= 500:
		c.metrics.Requests.WithLabelValues(label, ResultServerError).Inc()
		return &APIError{Class: class, StatusCode: status, Message: "server error after retries"}
	case status >= 400:
		c.metrics.Requests.WithLabelValues(label, ResultClientError).Inc()
		return &APIError{Class: class, StatusCode: status, Message: string(resp.Body())}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			c.metrics.Requests.WithLabelValues(label, ResultError).Inc()
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	c.metrics.Requests.WithLabelValues(label, ResultSuccess).Inc()
	return nil
}
