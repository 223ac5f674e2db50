// Package holidayapi is a client for the public-data special-day service
// (getRestDeInfo) that lists national holidays per year.
package holidayapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
)

const (
	DefaultBaseURL = "https://apis.data.go.kr/B090041/openapi/service/SpcdeInfoService/getRestDeInfo"

	// PlaceholderKey is the value shipped in sample configs
	PlaceholderKey = "YOUR_API_KEY_HERE"

	FormatXML  = "xml"
	FormatJSON = "json"

	defaultPageSize = 100
	maxPages        = 10
)

// Client fetches holiday documents. A single Client is safe for concurrent use.
type Client struct {
	baseURL    string
	serviceKey string
	format     string
	pageSize   int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a new holiday API client. The service key may be given
// URL-encoded, as the portal hands it out.
func NewClient(baseURL, serviceKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoded, err := url.QueryUnescape(serviceKey); err == nil {
		serviceKey = decoded
	}

	c := &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		format:     FormatXML,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "holidayapi",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// an explicit API answer means the service is up, and a caller
			// giving up says nothing about it
			var apiErr *APIError
			var gone *callerGoneError
			return err == nil || errors.As(err, &apiErr) || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// IsConfigured returns true if both the endpoint and a real key are set
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.serviceKey != "" && c.serviceKey != PlaceholderKey
}

// SetFormat selects the wire format, "xml" (default) or "json"
func (c *Client) SetFormat(format string) {
	if format == FormatJSON {
		c.format = FormatJSON
		return
	}
	c.format = FormatXML
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetPageSize overrides numOfRows
func (c *Client) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// FetchYear returns every item the service lists for the year
func (c *Client) FetchYear(ctx context.Context, year int) ([]domain.RawHoliday, error) {
	return c.fetch(ctx, year, 0)
}

// FetchMonth returns the items for one month, 1-12
func (c *Client) FetchMonth(ctx context.Context, year, month int) ([]domain.RawHoliday, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month out of range: %d", month)
	}
	return c.fetch(ctx, year, month)
}

func (c *Client) fetch(ctx context.Context, year, month int) ([]domain.RawHoliday, error) {
	if !c.IsConfigured() {
		if c.baseURL == "" {
			return nil, fmt.Errorf("%w: PUBLIC_DATA_API_URL is required", ErrNotConfigured)
		}
		return nil, fmt.Errorf("%w: PUBLIC_DATA_API_KEY is required", ErrNotConfigured)
	}

	var out []domain.RawHoliday
	for pageNo := 1; pageNo <= maxPages; pageNo++ {
		p, err := c.fetchPage(ctx, year, month, pageNo)
		if err != nil {
			return nil, err
		}
		for _, item := range p.Items {
			out = append(out, item.Raw())
		}
		if len(p.Items) == 0 || len(out) >= p.TotalCount {
			break
		}
	}

	c.logger.Debug("holidays fetched",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("items", len(out)))
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, year, month, pageNo int) (*page, error) {
	params := url.Values{}
	params.Set("serviceKey", c.serviceKey)
	params.Set("solYear", strconv.Itoa(year))
	params.Set("numOfRows", strconv.Itoa(c.pageSize))
	params.Set("pageNo", strconv.Itoa(pageNo))
	if month > 0 {
		params.Set("solMonth", fmt.Sprintf("%02d", month))
	}
	if c.format == FormatJSON {
		params.Set("_type", "json")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
		if err != nil {
			if ctx.Err() != nil {
				return nil, &callerGoneError{err: err}
			}
			return nil, err
		}
		if c.format == FormatJSON {
			return parseJSON(body)
		}
		return parseXML(body)
	})
	if err != nil {
		return nil, err
	}
	return res.(*page), nil
}

// doRequest performs a GET and returns the body of a 200 response
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet)
	}
	return body, nil
}
