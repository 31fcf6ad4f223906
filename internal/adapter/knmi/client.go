package knmi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
)

// DefaultBaseURL is the KNMI daily data endpoint.
const DefaultBaseURL = "https://www.daggegevens.knmi.nl/klimatologie/daggegevens"

// Client downloads the daily observation feed for one station.
// It implements pipeline.Fetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	station    string
	endDate    time.Time
	logger     *slog.Logger
}

// NewClient creates a feed client. A zero endDate means "today" according to
// the domain clock at fetch time. The HTTP client has no timeout; the request
// ends only when the server answers or ctx is cancelled.
func NewClient(baseURL, station string, endDate time.Time, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		station:    station,
		endDate:    endDate,
		logger:     logger,
	}
}

// Station returns the station id the client requests.
func (c *Client) Station() string {
	return c.station
}

// DateRange returns the inclusive start and end dates of the request: one
// calendar year ending at the configured end date.
func (c *Client) DateRange() (start, end time.Time) {
	end = c.endDate
	if end.IsZero() {
		now := domain.Now().UTC()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return end.AddDate(-1, 0, 0), end
}

// URL returns the full request URL.
func (c *Client) URL() string {
	start, end := c.DateRange()
	params := url.Values{
		"stns":  {c.station},
		"start": {start.Format(domain.FeedDateFormat)},
		"end":   {end.Format(domain.FeedDateFormat)},
	}
	return c.baseURL + "?" + params.Encode()
}

// Fetch performs one GET and returns the response body as text. There is no
// retry: transport failures and non-200 responses are returned as
// domain.ErrNetwork.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	fullURL := c.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrNetwork, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: knmi request: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: knmi API error: status %d: %s", domain.ErrNetwork, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read knmi response: %v", domain.ErrNetwork, err)
	}

	c.logger.Debug("knmi feed fetched",
		"station", c.station,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return string(body), nil
}
