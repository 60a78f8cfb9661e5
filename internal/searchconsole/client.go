// Package searchconsole implements the record source: a client for the
// Google Search Console Search Analytics API that materializes
// per-(query,page) rows for one property and date range.
package searchconsole

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/FranksOps/quern/internal/metrics"
	"github.com/FranksOps/quern/internal/topquery"
	"github.com/FranksOps/quern/pkg/httpclient"
	"github.com/FranksOps/quern/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the Google APIs host; tests point it at a fake.
	DefaultBaseURL = "https://www.googleapis.com"

	// DefaultRowLimit is the API maximum page size for searchAnalytics/query.
	DefaultRowLimit = 25000

	// DefaultMaxRows caps the number of rows materialized per fetch.
	DefaultMaxRows = 1_000_000

	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
	retryMaxDelay     = 8 * time.Second
)

// Config defines the setup for the Search Console client.
type Config struct {
	BaseURL           string
	TokenSource       oauth2.TokenSource
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	RowLimit          int
	MaxRows           int
	Logger            *zap.Logger
}

// Client talks to the Search Console API. One client serves one set of
// credentials; construct a fresh client per authorized session.
type Client struct {
	http       *httpclient.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	rowLimit   int
	maxRows    int
	maxRetries int
	logger     *zap.Logger
}

// New creates a Client. A nil TokenSource yields an unauthenticated
// client, which is only useful against a test server.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var transport http.RoundTripper
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: cfg.TokenSource}
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 3,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}

	return &Client{
		http:       hc,
		limiter:    ratelimit.NewLimiter(cfg.RequestsPerSecond),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		rowLimit:   cfg.RowLimit,
		maxRows:    cfg.MaxRows,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}, nil
}

// Close releases the client's rate limiter.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Query describes one search-analytics fetch. Dates are YYYY-MM-DD.
// Device is empty or "all" for no filter, otherwise desktop/mobile/tablet.
type Query struct {
	StartDate string
	EndDate   string
	Device    string
}

// Site is one authorized Search Console property.
type Site struct {
	SiteURL         string `json:"siteUrl"`
	PermissionLevel string `json:"permissionLevel"`
}

// APIError is a non-2xx response from the Search Console API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("search console: %s (status %d): %s", e.Reason, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("search console: status %d: %s", e.StatusCode, e.Message)
}

type queryRequest struct {
	StartDate             string        `json:"startDate"`
	EndDate               string        `json:"endDate"`
	Dimensions            []string      `json:"dimensions"`
	RowLimit              int           `json:"rowLimit"`
	StartRow              int           `json:"startRow"`
	DimensionFilterGroups []filterGroup `json:"dimensionFilterGroups,omitempty"`
}

type filterGroup struct {
	Filters []dimensionFilter `json:"filters"`
}

type dimensionFilter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

type queryResponse struct {
	Rows []apiRow `json:"rows"`
}

// The API reports counts as floats.
type apiRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

type sitesResponse struct {
	SiteEntry []Site `json:"siteEntry"`
}

// Fetch pulls every (query, page) row for the property and date range,
// paging by start-row offsets until a short page or the row cap. The
// returned collection is fully materialized; the aggregator is not
// streaming-compatible.
func (c *Client) Fetch(ctx context.Context, property string, q Query) ([]topquery.Record, error) {
	reqBody := queryRequest{
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Dimensions: []string{"query", "page"},
		RowLimit:   c.rowLimit,
	}
	if device := strings.ToLower(strings.TrimSpace(q.Device)); device != "" && device != "all" {
		reqBody.DimensionFilterGroups = []filterGroup{{
			Filters: []dimensionFilter{{
				Dimension:  "device",
				Operator:   "equals",
				Expression: device,
			}},
		}}
	}

	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query",
		c.baseURL, url.PathEscape(property))

	var records []topquery.Record
	for {
		reqBody.StartRow = len(records)

		var page queryResponse
		if err := c.doJSON(ctx, property, http.MethodPost, endpoint, reqBody, &page); err != nil {
			return nil, fmt.Errorf("fetch search analytics for %s: %w", property, err)
		}

		metrics.RecordSourceRows(property, len(page.Rows))
		c.logger.Debug("fetched analytics page",
			zap.String("property", property),
			zap.Int("start_row", reqBody.StartRow),
			zap.Int("rows", len(page.Rows)),
		)

		for _, row := range page.Rows {
			rec := topquery.Record{
				Clicks:      int(row.Clicks),
				Impressions: int(row.Impressions),
				CTR:         row.CTR,
			}
			if len(row.Keys) > 0 {
				rec.Query = row.Keys[0]
			}
			if len(row.Keys) > 1 {
				rec.Page = row.Keys[1]
			}
			records = append(records, rec)
		}

		if len(page.Rows) < c.rowLimit || len(records) >= c.maxRows {
			break
		}
	}

	if len(records) > c.maxRows {
		records = records[:c.maxRows]
	}
	return records, nil
}

// ListSites returns the properties the credentials may query.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var out sitesResponse
	endpoint := c.baseURL + "/webmasters/v3/sites"
	if err := c.doJSON(ctx, "", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return out.SiteEntry, nil
}

// doJSON performs one API call with rate limiting and bounded retries
// on transient statuses.
func (c *Client) doJSON(ctx context.Context, property, method, endpoint string, body, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := httpclient.NewJSONRequest(method, endpoint, body)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(ctx, req)
		if err != nil {
			metrics.RecordSourceRequest(property, "transport_error")
			return err
		}

		metrics.RecordSourceRequest(property, strconv.Itoa(resp.StatusCode))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return httpclient.DecodeJSON(resp, out)
		}

		apiErr := parseAPIError(resp)

		if !retryable(resp.StatusCode) || attempt >= c.maxRetries {
			return apiErr
		}

		delay := retryBaseDelay << attempt
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		c.logger.Warn("retrying search console request",
			zap.String("property", property),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return true
	}
	return false
}

// parseAPIError reads and closes the body, extracting the API's error
// reason and message when present.
func parseAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(buf))
		return apiErr
	}

	apiErr.Message = body.Error.Message
	if len(body.Error.Errors) > 0 {
		apiErr.Reason = body.Error.Errors[0].Reason
	}
	return apiErr
}
