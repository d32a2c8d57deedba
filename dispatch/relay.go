/*
relay.go - Push relay HTTP client

PURPOSE:
  Submits one notification per request to the third-party push relay and
  classifies the response into the three outcome classes the runner cares
  about: delivered, rejected by the relay, or never reached the relay.

WIRE CONTRACT:
  POST {base}/push/send
  body:     {"to": token, "title", "body", "data", "sound", "priority"}
  response: {"data": [{"status": "ok"|"error", "message"?, "details"?}]}
  Tickets are order-correlated with the submitted tokens; single-recipient
  requests carry exactly one ticket.

RETRY POLICY:
  None here. Send is at-most-once per invocation. Callers wanting
  at-least-once retry TransportFailure outcomes only - a RelayRejected
  token will fail again until it is refreshed out of band.
*/
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hybridhq/reminder-engine/engine"
)

// =============================================================================
// OUTCOME CLASSIFICATION
// =============================================================================

type OutcomeStatus string

const (
	Delivered        OutcomeStatus = "delivered"
	RelayRejected    OutcomeStatus = "relay_rejected"
	TransportFailure OutcomeStatus = "transport_failure"
)

// Outcome is the classified result of one submission.
type Outcome struct {
	UserID string
	Status OutcomeStatus
	Reason string // relay rejection reason, e.g. "DeviceNotRegistered"
	Err    error  // transport error, when Status == TransportFailure
}

// Failure returns the outcome as an error for classification helpers, or
// nil when delivered.
func (o Outcome) Failure() error {
	switch o.Status {
	case RelayRejected:
		return &engine.RelayError{Reason: o.Reason}
	case TransportFailure:
		return &engine.TransportError{Err: o.Err}
	}
	return nil
}

// =============================================================================
// RELAY CLIENT
// =============================================================================

// Sender is the dispatch dependency the runner and fan-out work against.
type Sender interface {
	Send(ctx context.Context, msg Message) Outcome
}

// RelayClient talks to the push relay over HTTP.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// relayTicket is one per-recipient entry of the relay response.
type relayTicket struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

type relayResponse struct {
	Data []relayTicket `json:"data"`
}

// Send submits one message and classifies the result. Never returns an
// error: every failure mode maps to an Outcome so the caller's bookkeeping
// is uniform.
func (c *RelayClient) Send(ctx context.Context, msg Message) Outcome {
	out := Outcome{UserID: msg.UserID}

	body, err := json.Marshal(msg)
	if err != nil {
		out.Status = TransportFailure
		out.Err = fmt.Errorf("marshal message: %w", err)
		return out
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/push/send", bytes.NewReader(body))
	if err != nil {
		out.Status = TransportFailure
		out.Err = fmt.Errorf("build request: %w", err)
		return out
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		out.Status = TransportFailure
		out.Err = err
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		out.Status = TransportFailure
		out.Err = fmt.Errorf("relay returned status %d: %s", resp.StatusCode, string(raw))
		return out
	}

	var parsed relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		out.Status = TransportFailure
		out.Err = fmt.Errorf("decode relay response: %w", err)
		return out
	}
	if len(parsed.Data) == 0 {
		out.Status = TransportFailure
		out.Err = fmt.Errorf("relay returned no ticket")
		return out
	}

	ticket := parsed.Data[0]
	if ticket.Status == "ok" {
		out.Status = Delivered
		return out
	}

	out.Status = RelayRejected
	out.Reason = ticket.Message
	if out.Reason == "" {
		out.Reason = "unspecified"
	}
	return out
}
