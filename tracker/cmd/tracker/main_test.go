package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/tracker/internal/config"
	"github.com/contextcommerce/contextcommerce/tracker/internal/scrape"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// eventServer records every event POSTed to /events.
type eventServer struct {
	*httptest.Server
	mu     sync.Mutex
	events []types.QueuedEvent
}

func newEventServer(t *testing.T) *eventServer {
	t.Helper()
	s := &eventServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch struct {
			Events []types.QueuedEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.events = append(s.events, batch.Events...)
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *eventServer) received() []types.QueuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.QueuedEvent(nil), s.events...)
}

// writeConfig writes a tracker config into a temp dir and returns its path.
func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("tracker:\n  consent_file: %s\n  landing_url: \"https://blog.example.com/?utm_source=naver&utm_campaign=spring\"\n",
		filepath.Join(dir, "consent.json"))
	if endpoint != "" {
		body += fmt.Sprintf("  endpoint: %s\n", endpoint)
	}
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func execute(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeFull(t, configPath, stdin, args...)
	return out, err
}

// executeFull also returns what the command logged to stderr.
func executeFull(t *testing.T, configPath, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConsentCommand(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, "", "consent")
	require.NoError(t, err)
	assert.Contains(t, out, "tracking: unknown")

	out, err = execute(t, cfg, "", "consent", "granted")
	require.NoError(t, err)
	assert.Contains(t, out, "tracking: granted")
	assert.Contains(t, out, "updated")

	out, err = execute(t, cfg, "", "consent")
	require.NoError(t, err)
	assert.Contains(t, out, "tracking: granted")

	_, err = execute(t, cfg, "", "consent", "maybe")
	assert.ErrorContains(t, err, "unknown consent status")
}

func TestSendTestCommand(t *testing.T) {
	srv := newEventServer(t)
	cfg := writeConfig(t, srv.URL+"/events")

	_, err := execute(t, cfg, "", "send-test")
	require.ErrorContains(t, err, "consent_not_granted")
	assert.Empty(t, srv.received())

	out, err := execute(t, cfg, "", "send-test", "--ignore-consent", "--content-id", "a42")
	require.NoError(t, err)
	assert.Contains(t, out, "sent 1 test event")

	got := srv.received()
	require.Len(t, got, 1)
	assert.Equal(t, types.EventPageView, got[0].Event)
	assert.Equal(t, "a42", got[0].ContentID)
	assert.Equal(t, "test", got[0].WidgetVersion)
	assert.Equal(t, "naver", got[0].Attribution.UTMSource)
}

const replayInput = `{"event":"product_impression","contentId":"a1","productId":"p1"}

{"event":"product_click","contentId":"a1","productId":"p1","metadata":{"slot":2}}
{not json}
{"event":"made_up"}
`

func TestReplayCommand(t *testing.T) {
	srv := newEventServer(t)
	cfg := writeConfig(t, srv.URL+"/events")
	_, err := execute(t, cfg, "", "consent", "granted")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(replayInput), 0o600))

	out, err := execute(t, cfg, "", "replay", file)
	require.NoError(t, err)
	assert.Contains(t, out, "queued 2, skipped 2")
	assert.Contains(t, out, "sent 2 events")

	got := srv.received()
	require.Len(t, got, 2)
	assert.Equal(t, types.EventProductImpression, got[0].Event)
	assert.Equal(t, types.EventProductClick, got[1].Event)
	assert.Equal(t, got[0].SessionID, got[1].SessionID)
	assert.Equal(t, "granted", got[1].Metadata["consent"])
	assert.EqualValues(t, 2, got[1].Metadata["slot"])
	assert.Equal(t, config.DefaultWidgetVersion, got[0].WidgetVersion)
}

func TestReplayCommand_NoConsentQueuesNothing(t *testing.T) {
	srv := newEventServer(t)
	cfg := writeConfig(t, srv.URL+"/events")

	out, logs, err := executeFull(t, cfg, replayInput, "replay", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "queued 0, skipped 4")
	assert.Contains(t, logs, "tracking consent not granted")
	assert.Empty(t, srv.received())
}

func TestReplayCommand_ConsoleSink(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, cfg, "", "consent", "granted")
	require.NoError(t, err)

	out, err := execute(t, cfg, replayInput, "replay", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "sent 2 events to console")
}

func TestReplayCommand_MissingFile(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, cfg, "", "replay", filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

func TestRunCommand_FlushesOnEOF(t *testing.T) {
	srv := newEventServer(t)
	cfg := writeConfig(t, srv.URL+"/events")
	_, err := execute(t, cfg, "", "consent", "granted")
	require.NoError(t, err)

	_, logs, err := executeFull(t, cfg, replayInput, "run")
	require.NoError(t, err)
	assert.Len(t, srv.received(), 2)
	assert.NotContains(t, logs, "tracking consent not granted")
}

const exposition = `# TYPE contextcommerce_events_accepted_total counter
contextcommerce_events_accepted_total 42
# TYPE contextcommerce_events_dropped_total counter
contextcommerce_events_dropped_total{reason="no_consent"} 3
# TYPE contextcommerce_proxy_requests_total counter
contextcommerce_proxy_requests_total{endpoint="shop",outcome="ok"} 10
# TYPE contextcommerce_stream_clients gauge
contextcommerce_stream_clients 1
`

func TestStatsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(exposition)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	cfg := writeConfig(t, srv.URL+"/events")

	out, err := execute(t, cfg, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL+"/metrics")
	assert.Contains(t, out, "accepted        42")
	assert.Contains(t, out, "no_consent")
	assert.Contains(t, out, "clients         1")

	out, err = execute(t, cfg, "", "stats", "--json")
	require.NoError(t, err)
	var sum struct {
		Accepted float64            `json:"accepted"`
		Dropped  map[string]float64 `json:"dropped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 42.0, sum.Accepted)
	assert.Equal(t, 3.0, sum.Dropped["no_consent"])
}

func TestWatchStats(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(exposition)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- watchStats(ctx, &out, scrape.New(srv.URL, time.Second), srv.URL, 10*time.Millisecond, false)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "scrape failed")
	assert.Contains(t, text, "rates (last")
	assert.Contains(t, text, "accepted/min    0.0")
}

func TestStatsCommand_NoURL(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, cfg, "", "stats")
	assert.ErrorContains(t, err, "metrics_url")
}

func TestLoadConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := loadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxQueue, cfg.Tracker.MaxQueue)

	_, err = loadConfig(missing, true)
	assert.Error(t, err)
}
