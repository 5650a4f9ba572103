package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/tracker/internal/config"
	"github.com/contextcommerce/contextcommerce/tracker/internal/eventlog"
	"github.com/contextcommerce/contextcommerce/tracker/internal/scrape"
)

var (
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	heading = color.New(color.Bold)
	muted   = color.New(color.FgHiBlack)
)

// maxLineBytes bounds one JSONL payload line.
const maxLineBytes = 1 << 20

func newConsentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "consent [granted|denied|unknown]",
		Short:     "Show or set tracking consent",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(types.ConsentGranted), string(types.ConsentDenied), string(types.ConsentUnknown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				printConsent(out, a.consent.Get())
				return nil
			}
			status, ok := types.ParseConsentStatus(args[0])
			if !ok {
				return fmt.Errorf("unknown consent status %q: want granted|denied|unknown", args[0])
			}
			st, err := a.consent.Set(status)
			if err != nil {
				return err
			}
			printConsent(out, st)
			return nil
		},
	}
}

func printConsent(w io.Writer, st types.ConsentState) {
	c := muted
	switch st.Tracking {
	case types.ConsentGranted:
		c = success
	case types.ConsentDenied:
		c = failure
	}
	fmt.Fprint(w, "tracking: ")
	c.Fprint(w, st.Tracking)
	if st.UpdatedAt != "" {
		muted.Fprintf(w, " (updated %s)", st.UpdatedAt)
	}
	fmt.Fprintln(w)
}

func newSendTestCmd(a *app) *cobra.Command {
	var contentID string
	var ignoreConsent bool
	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send one test page_view to the configured endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.logger.SendTest(cmd.Context(), a.sink(), types.EventPayload{ContentID: contentID}, !ignoreConsent)
			if errors.Is(res.Err, eventlog.ErrConsentNotGranted) {
				return fmt.Errorf("%w: run `consent granted` or pass --ignore-consent", res.Err)
			}
			if res.Err != nil {
				return res.Err
			}
			success.Fprintf(cmd.OutOrStdout(), "sent %d test event to %s\n", res.Sent, a.target())
			return nil
		},
	}
	cmd.Flags().StringVar(&contentID, "content-id", "", "contentId of the test event (default "+eventlog.TestContentID+")")
	cmd.Flags().BoolVar(&ignoreConsent, "ignore-consent", false, "send even when tracking consent is not granted")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE",
		Short: "Log every JSONL event payload in FILE (- for stdin) and flush them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("replay: %w", err)
				}
				defer f.Close()
				r = f
			}

			warnIfNoConsent(a)
			queued, skipped, err := logPayloads(cmd.Context(), a.logger, r)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			res := a.logger.FlushTo(cmd.Context(), a.sink())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "queued %d, skipped %d\n", queued, skipped)
			if res.Err != nil {
				return fmt.Errorf("flush to %s: %w", a.target(), res.Err)
			}
			success.Fprintf(out, "sent %d events to %s\n", res.Sent, a.target())
			return nil
		},
	}
}

// warnIfNoConsent tells the user up front that every payload will be
// skipped, instead of one debug line per event.
func warnIfNoConsent(a *app) {
	if !a.consent.Granted() {
		slog.Warn("tracker: tracking consent not granted, payloads will be skipped; run `consent granted` to enable",
			"consent_file", a.cfg.Tracker.ConsentFile)
	}
}

// logPayloads reads JSONL payloads from r and logs each one. Blank lines are
// ignored. Lines that do not decode to a known event are skipped with a
// warning, as are events refused for lack of consent. It stops at EOF or
// when ctx is done.
func logPayloads(ctx context.Context, l *eventlog.Logger, r io.Reader) (queued, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return queued, skipped, nil
		}
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var p types.EventPayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			slog.Warn("tracker: skipping unparsable payload", "line", line, "err", err)
			skipped++
			continue
		}
		if !p.Event.Valid() {
			slog.Warn("tracker: skipping unknown event", "line", line, "event", p.Event)
			skipped++
			continue
		}
		if _, ok := l.Log(p); ok {
			queued++
		} else {
			skipped++
		}
	}
	return queued, skipped, sc.Err()
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log JSONL payloads from stdin and flush them periodically until EOF or interrupt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigCtx, stopSignals := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stopSignals()
			ctx, cancel := context.WithCancel(sigCtx)
			defer cancel()
			return runTracker(ctx, cancel, a, cmd.InOrStdin())
		},
	}
}

// runTracker runs the flush loop, the stdin reader and the config watcher.
// End of input cancels the loop, which performs a final flush.
func runTracker(ctx context.Context, stop context.CancelFunc, a *app, in io.Reader) error {
	slog.Info("contextcommerce-tracker running",
		"target", a.target(),
		"session_id", a.logger.SessionID(),
		"flush_interval", a.cfg.Tracker.FlushInterval,
		"consent", a.consent.Get().Tracking,
	)
	warnIfNoConsent(a)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Run(gctx, a.sink())
		return nil
	})

	// The scanner cannot be interrupted, so the reader is left outside the
	// group and reports through a channel.
	readDone := make(chan error, 1)
	go func() {
		queued, skipped, err := logPayloads(gctx, a.logger, in)
		slog.Info("tracker: input closed", "queued", queued, "skipped", skipped)
		readDone <- err
	}()
	g.Go(func() error {
		select {
		case err := <-readDone:
			stop()
			return err
		case <-gctx.Done():
			return nil
		}
	})

	if _, err := os.Stat(a.configPath); err == nil {
		g.Go(func() error {
			err := config.Watch(gctx, a.configPath, func(updated *config.Config) {
				a.session.SetLanding(updated.Tracker.LandingURL)
				slog.Info("tracker: config reloaded; endpoint and queue settings apply on restart",
					"endpoint", updated.Tracker.Endpoint)
			})
			if err != nil {
				slog.Error("tracker: config watch disabled", "path", a.configPath, "err", err)
			}
			return nil
		})
	}

	err := g.Wait()
	slog.Info("contextcommerce-tracker stopped", "pending", a.logger.Len())
	return err
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the server's ingest counters from its /metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := a.cfg.Tracker.EffectiveMetricsURL()
			if url == "" {
				return errors.New("stats: set tracker.metrics_url or tracker.endpoint")
			}
			out := cmd.OutOrStdout()

			if watch <= 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Tracker.Timeout)
				defer cancel()
				sum, err := scrape.Fetch(ctx, url)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, sum)
				}
				printStats(out, url, sum)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchStats(ctx, out, scrape.New(url, a.cfg.Tracker.Timeout), url, watch, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().DurationVar(&watch, "watch", 0, "scrape repeatedly at this interval and print per-minute rates")
	return cmd
}

// watchStats scrapes every interval until ctx is done. A failed scrape is
// reported and the previous reading is kept as the rate baseline.
func watchStats(ctx context.Context, w io.Writer, sc *scrape.Scraper, url string, interval time.Duration, asJSON bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev *scrape.Summary
	for {
		sum, err := sc.Scrape(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			failure.Fprintf(w, "scrape failed: %v\n", err)
		case asJSON:
			rec := struct {
				*scrape.Summary
				Rates *scrape.Rates `json:"rates,omitempty"`
			}{Summary: sum}
			if prev != nil {
				r := scrape.Rate(prev, sum)
				rec.Rates = &r
			}
			if err := writeJSON(w, rec); err != nil {
				return err
			}
			prev = sum
		default:
			printStats(w, url, sum)
			if prev != nil {
				printRates(w, scrape.Rate(prev, sum))
			}
			fmt.Fprintln(w)
			prev = sum
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRates(w io.Writer, r scrape.Rates) {
	heading.Fprintf(w, "rates (last %s)\n", r.Elapsed.Round(time.Second))
	fmt.Fprintf(w, "  accepted/min    %.1f\n", r.AcceptedPM)
	c := success
	if r.DropPct > 0 {
		c = failure
	}
	fmt.Fprintf(w, "  dropped/min     %.1f (", r.DroppedPM)
	c.Fprintf(w, "%.1f%%", r.DropPct)
	fmt.Fprintln(w, ")")
	fmt.Fprintf(w, "  proxy/min       %.1f (%.1f%% fallback)\n", r.ProxyPM, r.FallbackPct)
}

func printStats(w io.Writer, url string, s *scrape.Summary) {
	heading.Fprintln(w, "ingest")
	muted.Fprintf(w, "  source %s\n", url)
	fmt.Fprintf(w, "  accepted        %.0f\n", s.Accepted)
	fmt.Fprintf(w, "  dropped         %.0f\n", s.TotalDropped())
	for _, k := range sortedKeys(s.Dropped) {
		fmt.Fprintf(w, "    %-13s %.0f\n", labelOrNone(k), s.Dropped[k])
	}
	heading.Fprintln(w, "proxy")
	for _, k := range sortedKeys(s.ProxyRequests) {
		fmt.Fprintf(w, "  %-15s %.0f\n", labelOrNone(k), s.ProxyRequests[k])
	}
	heading.Fprintln(w, "stream")
	fmt.Fprintf(w, "  clients         %.0f\n", s.StreamClients)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
