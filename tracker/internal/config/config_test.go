package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the server section is present; the tracker falls back to defaults.
	cfg, err := Load(writeConfig(t, "server:\n  http_port: 4000\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr := cfg.Tracker
	if tr.FlushInterval != DefaultFlushInterval {
		t.Errorf("flush_interval: got %v, want %v", tr.FlushInterval, DefaultFlushInterval)
	}
	if tr.MaxQueue != DefaultMaxQueue {
		t.Errorf("max_queue: got %d, want %d", tr.MaxQueue, DefaultMaxQueue)
	}
	if tr.ConsentFile != DefaultConsentFile {
		t.Errorf("consent_file: got %q", tr.ConsentFile)
	}
	if tr.Endpoint != "" {
		t.Errorf("endpoint: got %q, want empty", tr.Endpoint)
	}
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `tracker:
  endpoint: http://localhost:4000/events
  flush_interval: 2s
  max_queue: 50
  consent_file: /tmp/consent.json
  widget_version: 2.1.0
  landing_url: https://shop.example.com/?utm_source=naver
  timeout: 3s
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr := cfg.Tracker
	if tr.Endpoint != "http://localhost:4000/events" || tr.FlushInterval != 2*time.Second || tr.MaxQueue != 50 {
		t.Errorf("tracker: got %+v", tr)
	}
	if tr.WidgetVersion != "2.1.0" || tr.Timeout != 3*time.Second {
		t.Errorf("tracker: got %+v", tr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"flush interval": "tracker:\n  flush_interval: -1s\n",
		"max queue":      "tracker:\n  max_queue: 0\n",
		"endpoint":       "tracker:\n  endpoint: localhost:4000\n",
		"metrics url":    "tracker:\n  metrics_url: ftp://x/metrics\n",
		"yaml":           "tracker: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEffectiveMetricsURL(t *testing.T) {
	cases := []struct {
		cfg  TrackerConfig
		want string
	}{
		{TrackerConfig{Endpoint: "http://localhost:4000/events"}, "http://localhost:4000/metrics"},
		{TrackerConfig{Endpoint: "https://x.example/.netlify/functions/proxy/events/"}, "https://x.example/.netlify/functions/proxy/metrics"},
		{TrackerConfig{Endpoint: "http://a/events", MetricsURL: "http://b/metrics"}, "http://b/metrics"},
		{TrackerConfig{}, ""},
	}
	for _, c := range cases {
		if got := c.cfg.EffectiveMetricsURL(); got != c.want {
			t.Errorf("%+v: got %q, want %q", c.cfg, got, c.want)
		}
	}
}

func TestWatch_Reloads(t *testing.T) {
	p := writeConfig(t, "tracker:\n  max_queue: 10\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, p, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("tracker:\n  max_queue: 20\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Truncate-then-write can surface an intermediate empty file; wait for
	// the final contents.
	deadline := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case c := <-got:
			done = c.Tracker.MaxQueue == 20
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Watch: %v", err)
	}
}

func TestWatch_ReloadsOnAtomicSave(t *testing.T) {
	p := writeConfig(t, "tracker:\n  max_queue: 10\n")
	dir := filepath.Dir(p)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, p, func(c *Config) { got <- c }) }()
	time.Sleep(100 * time.Millisecond)

	save := func(body string) {
		t.Helper()
		tmp := filepath.Join(dir, "config.yaml.tmp")
		if err := os.WriteFile(tmp, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, p); err != nil {
			t.Fatal(err)
		}
	}
	waitQueue := func(want int) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case c := <-got:
				if c.Tracker.MaxQueue == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for max_queue %d", want)
			}
		}
	}

	save("tracker:\n  max_queue: 20\n")
	waitQueue(20)

	// A second save, and then an in-place write, must still be seen after
	// the original inode is gone.
	save("tracker:\n  max_queue: 30\n")
	waitQueue(30)
	if err := os.WriteFile(p, []byte("tracker:\n  max_queue: 40\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitQueue(40)

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Watch: %v", err)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	p := writeConfig(t, "tracker:\n  max_queue: 10\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 1)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, p, func(c *Config) { got <- c }) }()
	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(filepath.Dir(p), "other.yaml")
	if err := os.WriteFile(other, []byte("tracker:\n  max_queue: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-got:
		t.Errorf("unexpected reload: %+v", c.Tracker)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	<-errc
}
