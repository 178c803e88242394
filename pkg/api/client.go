package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clipvault/pkg/collector"
	"clipvault/pkg/config"
	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"
	"clipvault/pkg/ratelimit"
	"clipvault/pkg/retry"
)

// Client reads items and listing pages from the item endpoint
type Client struct {
	httpClient *http.Client
	endpoint   collector.Endpoint
	headers    http.Header
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a Client from the api, rate_limit and retry sections
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "api")

	return &Client{
		httpClient: NewHTTPClient(cfg.API.Timeout, cfg.API.SkipCertCheck),
		endpoint:   collector.Endpoint{BaseURL: cfg.API.BaseURL, FeedPath: cfg.API.FeedPath},
		headers:    Headers(cfg.API),
		limiter:    ratelimit.FromSettings(cfg.RateLimit),
		retry:      retry.FromSettings(cfg.Retry, log),
		logger:     log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetry replaces the retry policy
func (c *Client) SetRetry(cfg *retry.Config) {
	c.retry = cfg
}

// FetchRoot fetches the item for ref (a post id or a full URL)
func (c *Client) FetchRoot(ctx context.Context, ref string) (*collector.Item, error) {
	url := c.endpoint.NormalizeRef(ref, "")
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (*collector.Item, error) {
		var item collector.Item
		if err := c.GetJSON(ctx, url, &item); err != nil {
			return nil, err
		}
		return &item, nil
	})
}

// FetchPage fetches one related-items page following cursor
func (c *Client) FetchPage(ctx context.Context, ref, cursor string) (*collector.PageListing, error) {
	url := c.endpoint.NormalizeRef(ref, cursor)
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (*collector.PageListing, error) {
		var page collector.PageListing
		if err := c.GetJSON(ctx, url, &page); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// GetJSON performs a GET request and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header = c.headers.Clone()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger, req.Method, url, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}
	defer resp.Body.Close()
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON")
	}

	return nil
}

// checkResponseStatus maps non-2xx responses to typed errors
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var message string
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		message = "authentication required or token rejected"
	case http.StatusNotFound:
		message = "item not found"
	case http.StatusTooManyRequests:
		message = "rate limit exceeded"
	default:
		message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}
	return errs.New(errs.FromStatus(resp.StatusCode), resp.StatusCode, "%s", message)
}
