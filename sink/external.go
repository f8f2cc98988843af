package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// External places orders against a counterpart's HTTP API. Status code
// classes map onto the error taxonomy: 429 and 5xx are transient,
// other 4xx are permanent. Every call carries a hard timeout so a
// stalled counterpart can never block the coordinator.
type External struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewExternal builds a sink for the given API base URL.
func NewExternal(baseURL, apiKey string, timeout time.Duration) *External {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &External{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type placeRequest struct {
	MarketID  string  `json:"market_id"`
	Selection string  `json:"selection"`
	Stake     string  `json:"stake"`
	Odds      float64 `json:"odds"`
}

type placeResponse struct {
	ConfirmationID string    `json:"confirmation_id"`
	PlacedAt       time.Time `json:"placed_at"`
	Error          string    `json:"error,omitempty"`
}

func (e *External) Place(ctx context.Context, o Order) (Confirmation, error) {
	body, err := json.Marshal(placeRequest{
		MarketID:  o.MarketID,
		Selection: o.Selection,
		Stake:     o.Stake.String(),
		Odds:      o.Odds,
	})
	if err != nil {
		return Confirmation{}, Permanent(fmt.Errorf("marshal order: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/bets", bytes.NewReader(body))
	if err != nil {
		return Confirmation{}, Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		// Includes client timeouts: the order may have gone through.
		return Confirmation{}, Transient(err)
	}
	defer resp.Body.Close()

	var out placeResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&out); decErr != nil && resp.StatusCode < 300 {
		return Confirmation{}, Transient(fmt.Errorf("decode response: %w", decErr))
	}

	switch {
	case resp.StatusCode < 300:
		return Confirmation{ID: out.ConfirmationID, PlacedAt: out.PlacedAt}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Confirmation{}, Transient(fmt.Errorf("counterpart %d: %s", resp.StatusCode, out.Error))
	default:
		return Confirmation{}, Permanent(fmt.Errorf("counterpart %d: %s", resp.StatusCode, out.Error))
	}
}

// GetStatus asks the counterpart for an order's state.
func (e *External) GetStatus(ctx context.Context, confirmationID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/bets/"+confirmationID, nil)
	if err != nil {
		return StatusUnknown, Permanent(err)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return StatusUnknown, Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotImplemented {
		return StatusUnknown, ErrUnsupported
	}
	if resp.StatusCode >= 300 {
		return StatusUnknown, Transient(fmt.Errorf("counterpart %d", resp.StatusCode))
	}

	var out struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusUnknown, Transient(err)
	}
	return out.Status, nil
}
