// Package elexon provides access to the BMRS indicated-imbalance day-ahead
// evolution feed with retry logic.
//
// One logical fetch covers a local calendar day, which maps to two
// sub-requests against UTC settlement days: the tail of the previous day
// (periods 47-48) and the bulk of the selected day (periods 1-46). An attempt
// succeeds only if both sub-requests return 200; otherwise the whole attempt
// is retried after a fixed delay. A partial success is discarded rather than
// combined with a later retry, keeping attempt semantics all-or-nothing.
package elexon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/logger"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
)

const evolutionPath = "/forecast/indicated/day-ahead/evolution"

// ClientConfig holds retry and pacing parameters for the client.
type ClientConfig struct {
	MaxAttempts  int           // logical fetch attempts before giving up
	AttemptDelay time.Duration // delay between failed attempts
	RequestPause time.Duration // pause between the two sub-requests of one attempt
}

// Client fetches indicated-imbalance evolution records from the BMRS API.
type Client struct {
	apiBaseURL string
	httpClient *http.Client
	cfg        ClientConfig
}

// NewClient creates a new BMRS client. The HTTP timeout bounds each
// sub-request so a hung call cannot block the retry schedule.
func NewClient(apiBaseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Client{
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

// apiResponse mirrors the envelope of the BMRS JSON endpoints.
type apiResponse struct {
	Data []models.Record `json:"data"`
}

// Fetch retrieves all raw records for the local calendar day: periods 47-48
// of the previous UTC settlement day followed by periods 1-46 of the selected
// day. It retries the whole two-request attempt on any failure and returns a
// *FetchError once MaxAttempts is exhausted. No partial state survives a
// failed attempt.
func (c *Client) Fetch(ctx context.Context, day time.Time) ([]models.Record, error) {
	prevDay := day.AddDate(0, 0, -1)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		records, err := c.fetchLocalDay(ctx, prevDay, day)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.Warn("fetch attempt %d/%d failed: %v", attempt, c.cfg.MaxAttempts, err)
		if attempt < c.cfg.MaxAttempts {
			if err := sleep(ctx, c.cfg.AttemptDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, &FetchError{Attempts: c.cfg.MaxAttempts, LastErr: lastErr}
}

// fetchLocalDay performs the two sub-requests of a single attempt.
func (c *Client) fetchLocalDay(ctx context.Context, prevDay, day time.Time) ([]models.Record, error) {
	tail, err := c.get(ctx, prevDay, 47, 48)
	if err != nil {
		return nil, err
	}

	// Fixed pause between sub-requests to respect upstream rate expectations.
	if err := sleep(ctx, c.cfg.RequestPause); err != nil {
		return nil, err
	}

	bulk, err := c.get(ctx, day, periodRange(1, 46)...)
	if err != nil {
		return nil, err
	}

	return append(tail, bulk...), nil
}

// get issues one request for the given UTC settlement day and periods.
func (c *Client) get(ctx context.Context, day time.Time, periods ...int) ([]models.Record, error) {
	u, err := url.Parse(c.apiBaseURL + evolutionPath)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	q := u.Query()
	q.Set("settlementDate", day.Format("2006-01-02"))
	for _, sp := range periods {
		q.Add("settlementPeriod", strconv.Itoa(sp))
	}
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bmrs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: evolutionPath, Code: resp.StatusCode}
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode bmrs response: %w", err)
	}

	return body.Data, nil
}

func periodRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for sp := from; sp <= to; sp++ {
		out = append(out, sp)
	}
	return out
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
