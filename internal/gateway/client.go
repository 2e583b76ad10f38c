package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// Endpoint paths served by the gateway's local query API.
const (
	EntriesPath = "/v1/usage/requests"
	SummaryPath = "/v1/usage/summary"
	DailyPath   = "/v1/usage/daily"
)

// ErrGatewayUnavailable is returned when the gateway rejects or cannot serve a query.
var ErrGatewayUnavailable = errors.New("gateway unavailable")

// Client is the read-only query interface of the gateway. All calls are
// idempotent reads.
type Client interface {
	UsageRequestEntries(ctx context.Context, args EntriesArgs) (models.UsageRequestPage, error)
	UsageRequestSummary(ctx context.Context, args SummaryArgs) (models.UsageSummary, error)
	UsageRequestDailyTotals(ctx context.Context, args DailyArgs) (models.DailyTotals, error)
}

// HTTPClient talks to the gateway's JSON query endpoints.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the gateway at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UsageRequestEntries fetches one page of usage entries.
func (c *HTTPClient) UsageRequestEntries(ctx context.Context, args EntriesArgs) (models.UsageRequestPage, error) {
	var page models.UsageRequestPage
	if err := c.post(ctx, EntriesPath, args, &page); err != nil {
		return models.UsageRequestPage{}, err
	}
	if !page.OK {
		return models.UsageRequestPage{}, fmt.Errorf("%w: entries query not ok", ErrGatewayUnavailable)
	}
	return page, nil
}

// UsageRequestSummary fetches request and token totals.
func (c *HTTPClient) UsageRequestSummary(ctx context.Context, args SummaryArgs) (models.UsageSummary, error) {
	var summary models.UsageSummary
	if err := c.post(ctx, SummaryPath, args, &summary); err != nil {
		return models.UsageSummary{}, err
	}
	return summary, nil
}

// UsageRequestDailyTotals fetches the per-day per-provider roll-up.
func (c *HTTPClient) UsageRequestDailyTotals(ctx context.Context, args DailyArgs) (models.DailyTotals, error) {
	var totals models.DailyTotals
	if err := c.post(ctx, DailyPath, args, &totals); err != nil {
		return models.DailyTotals{}, err
	}
	if !totals.OK {
		return models.DailyTotals{}, fmt.Errorf("%w: daily totals query not ok", ErrGatewayUnavailable)
	}
	return totals, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s (status %d): %s",
			ErrGatewayUnavailable, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}
