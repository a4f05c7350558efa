package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// pushTicket is the per-message response entry from the push API.
type pushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

type pushResponse struct {
	Data   []pushTicket `json:"data,omitempty"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// HTTPGateway talks to an Expo-compatible push endpoint: one POST per
// message, response tickets carrying either a receipt id or a typed error.
type HTTPGateway struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

func NewHTTPGateway(url, accessToken string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPGateway{
		url:         url,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Send(ctx context.Context, msg Message) (Receipt, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewBuffer(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("send push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Receipt{}, fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Receipt{}, fmt.Errorf("push API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed pushResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Receipt{}, fmt.Errorf("parse push response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return Receipt{}, &Error{Code: parsed.Errors[0].Code, Message: parsed.Errors[0].Message}
	}
	if len(parsed.Data) == 0 {
		return Receipt{}, fmt.Errorf("push API returned no tickets")
	}

	ticket := parsed.Data[0]
	if ticket.Status != "ok" {
		code := ticket.Details.Error
		if code == "" {
			code = "Unknown"
		}
		return Receipt{}, &Error{Code: code, Message: ticket.Message}
	}
	return Receipt{MessageID: ticket.ID}, nil
}
