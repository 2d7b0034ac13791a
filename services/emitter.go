package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/sirupsen/logrus"
)

// PushEmitter delivers notifications to the push gateway over HTTP. One
// POST per recipient; the coordinator owns retry across passes, so a
// failed delivery is reported, not retried here.
type PushEmitter struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
	limiter    *shared.RequestRateLimiter
}

func NewPushEmitter(gatewayURL, apiKey string, timeout time.Duration) *PushEmitter {
	factory := shared.NewHTTPClientFactory(timeout)
	return &PushEmitter{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     factory.CreateOptimizedHTTPClient(timeout),
		limiter:    shared.NewRequestRateLimiter(100 * time.Millisecond),
	}
}

type pushRequest struct {
	Token   string            `json:"token"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Payload map[string]string `json:"payload,omitempty"`
}

func (e *PushEmitter) Emit(ctx context.Context, token, title, body string, payload map[string]string) error {
	e.limiter.EnforceRateLimit()

	requestBody, err := json.Marshal(pushRequest{
		Token:   token,
		Title:   title,
		Body:    body,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.gatewayURL, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// LogEmitter is the transport used when no push gateway is configured. It
// records every would-be delivery as a structured log entry and always
// succeeds, which keeps the guard-flag semantics exercisable in
// development.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, token, title, body string, payload map[string]string) error {
	logrus.WithFields(logrus.Fields{
		"token_suffix": tokenSuffix(token),
		"title":        title,
		"body":         body,
		"payload":      payload,
	}).Info("Notification emitted (log transport)")
	return nil
}

func tokenSuffix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return "..." + token[len(token)-8:]
}
