package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// Sink delivers a batch of events.
type Sink interface {
	Send(ctx context.Context, events []types.QueuedEvent) error
}

// ConsoleSink logs batches instead of sending them. It is used when no
// endpoint is configured.
type ConsoleSink struct{}

// Send implements Sink.
func (ConsoleSink) Send(_ context.Context, events []types.QueuedEvent) error {
	slog.Info("eventlog: flush", "count", len(events), "events", events)
	return nil
}

// StatusError is a non-2xx response from the events endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("eventlog: endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("eventlog: endpoint returned %d: %s", e.Code, e.Body)
}

// Permanent reports whether resending the same batch cannot succeed.
func (e *StatusError) Permanent() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

// isPermanentError returns true when err says the batch itself was rejected.
func isPermanentError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}

// HTTPSink POSTs batches to the server's /events route.
type HTTPSink struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPSink returns an HTTPSink with its own client and timeout.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1 << 10

// Send implements Sink. Any non-2xx response is returned as *StatusError.
func (s *HTTPSink) Send(ctx context.Context, events []types.QueuedEvent) error {
	body, err := json.Marshal(struct {
		Events []types.QueuedEvent `json:"events"`
	}{events})
	if err != nil {
		return fmt.Errorf("eventlog: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("eventlog: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("eventlog: post %s: %w", s.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}
