package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"suiwager/internal/signer"
)

// Client fetches event completion state and cash-out pricing from the odds
// service. The settlement path only consumes two endpoints, so the surface
// stays deliberately small.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("odds API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type eventResponse struct {
	EventID  string `json:"event_id"`
	Finished bool   `json:"finished"`
	Result   string `json:"result"`
}

// GetEventState reports whether an event finished and what its result was.
func (c *Client) GetEventState(ctx context.Context, eventID string) (signer.EventState, error) {
	if eventID == "" {
		return signer.EventState{}, fmt.Errorf("event_id is required")
	}
	path := fmt.Sprintf("/events/%s", url.PathEscape(eventID))
	body, err := c.doRequest(ctx, path, nil)
	if err != nil {
		return signer.EventState{}, err
	}
	var out eventResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return signer.EventState{}, fmt.Errorf("failed to parse event response: %w", err)
	}
	return signer.EventState{Finished: out.Finished, Result: out.Result}, nil
}

type quoteResponse struct {
	EventID    string          `json:"event_id"`
	Prediction string          `json:"prediction"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// GetCashOutQuote returns the current cash-out multiplier for a prediction.
// The caller clamps the resulting value, so a stale or aggressive quote can
// never exceed the bet's locked payout.
func (c *Client) GetCashOutQuote(ctx context.Context, eventID, prediction string) (decimal.Decimal, error) {
	if eventID == "" {
		return decimal.Zero, fmt.Errorf("event_id is required")
	}
	query := url.Values{}
	query.Set("prediction", prediction)
	path := fmt.Sprintf("/events/%s/cashout-quote", url.PathEscape(eventID))
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return decimal.Zero, err
	}
	var out quoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse quote response: %w", err)
	}
	return out.Multiplier, nil
}
