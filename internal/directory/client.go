// Package directory is the HTTP client for the business and event directory API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
)

const (
	// DefaultTimeout bounds a single directory request
	DefaultTimeout = 30 * time.Second
	userAgent      = "Nearby/1.0"
)

// Client implements domain.DirectoryClient
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a directory client. token may be empty for public servers;
// a zero timeout uses DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// doRequest performs a GET and returns the body of a 200 response
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, accept string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("directory request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("directory request failed", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.ErrAuthFailed
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("directory request error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	body, err := c.doRequest(ctx, path, query, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// filterQuery maps filters to query parameters
func filterQuery(f domain.Filters) url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Near != nil {
		q.Set("lat", strconv.FormatFloat(f.Near.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(f.Near.Lng, 'f', -1, 64))
	}
	if f.RadiusMiles > 0 {
		q.Set("radius", strconv.FormatFloat(f.RadiusMiles, 'f', -1, 64))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// FetchBusinesses returns the businesses matching f
func (c *Client) FetchBusinesses(ctx context.Context, f domain.Filters) ([]domain.Record, error) {
	var resp struct {
		Businesses []domain.Record `json:"businesses"`
	}
	if err := c.getJSON(ctx, "/api/businesses", filterQuery(f), &resp); err != nil {
		return nil, err
	}
	return resp.Businesses, nil
}

// FetchEvents returns the events matching f
func (c *Client) FetchEvents(ctx context.Context, f domain.Filters) ([]domain.Record, error) {
	var resp struct {
		Events []domain.Record `json:"events"`
	}
	if err := c.getJSON(ctx, "/api/events", filterQuery(f), &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Search runs the server-side search
func (c *Client) Search(ctx context.Context, query string, f domain.Filters) (*domain.SearchResponse, error) {
	q := filterQuery(f)
	q.Set("q", query)

	var resp domain.SearchResponse
	if err := c.getJSON(ctx, "/api/search", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchTile downloads the raster tile at z/x/y
func (c *Client) FetchTile(ctx context.Context, z, x, y uint32) ([]byte, error) {
	return c.doRequest(ctx, fmt.Sprintf("/tiles/%d/%d/%d", z, x, y), nil, "image/*")
}

var _ domain.DirectoryClient = (*Client)(nil)
