package eventlog

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// occurredAtLayout matches the millisecond UTC timestamps browsers produce.
const occurredAtLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	// finalFlushTimeout bounds the shutdown flush in Run.
	finalFlushTimeout = 5 * time.Second

	defaultMaxQueue      = 1000
	defaultFlushInterval = 15 * time.Second
)

// Test event defaults used by SendTest.
const (
	TestContentID     = "test_content"
	TestWidgetVersion = "test"
)

// ErrConsentNotGranted is returned by SendTest when consent is required but
// not granted.
var ErrConsentNotGranted = errors.New("consent_not_granted")

// ConsentSource reports the current tracking consent.
type ConsentSource interface {
	Get() types.ConsentState
}

// AttributionSource reports the session's UTM attribution.
type AttributionSource interface {
	Get() types.Attribution
}

// Options configures a Logger.
type Options struct {
	// SessionID identifies this tracking session. Empty means a new one.
	SessionID string

	// MaxQueue bounds the queue (default 1000).
	MaxQueue int

	// FlushInterval is the Run period (default 15s).
	FlushInterval time.Duration

	// WidgetVersion is stamped on events that carry none.
	WidgetVersion string
}

// Result reports the outcome of a flush.
type Result struct {
	Sent int
	Err  error
}

// Logger is a consent-gated event queue. It is safe for concurrent use.
type Logger struct {
	consent       ConsentSource
	attribution   AttributionSource
	sessionID     string
	maxQueue      int
	interval      time.Duration
	widgetVersion string
	now           func() time.Time

	mu    sync.Mutex
	queue []types.QueuedEvent
}

// New returns a Logger. attribution may be nil.
func New(consent ConsentSource, attribution AttributionSource, opts Options) *Logger {
	if opts.SessionID == "" {
		opts.SessionID = NewSessionID()
	}
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = defaultMaxQueue
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	return &Logger{
		consent:       consent,
		attribution:   attribution,
		sessionID:     opts.SessionID,
		maxQueue:      opts.MaxQueue,
		interval:      opts.FlushInterval,
		widgetVersion: opts.WidgetVersion,
		now:           time.Now,
	}
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionID returns the session this Logger stamps on events.
func (l *Logger) SessionID() string { return l.sessionID }

// Len returns the number of queued events.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Log enriches p and queues it. It returns false, queueing nothing, when
// tracking consent is not granted.
func (l *Logger) Log(p types.EventPayload) (types.QueuedEvent, bool) {
	consent := l.consent.Get()
	if consent.Tracking != types.ConsentGranted {
		slog.Debug("eventlog: skipped, tracking consent not granted", "event", p.Event)
		return types.QueuedEvent{}, false
	}

	if p.Attribution == nil {
		a := l.sessionAttribution()
		p.Attribution = &a
	}
	metadata := map[string]any{"consent": string(consent.Tracking)}
	maps.Copy(metadata, p.Metadata)
	p.Metadata = metadata
	if p.WidgetVersion == "" {
		p.WidgetVersion = l.widgetVersion
	}

	e := types.QueuedEvent{
		EventPayload: p,
		SessionID:    l.sessionID,
		OccurredAt:   l.timestamp(),
	}

	l.mu.Lock()
	if len(l.queue) >= l.maxQueue {
		evicted := l.queue[0]
		l.queue = l.queue[1:]
		slog.Warn("eventlog: queue full, evicted oldest event",
			"event", evicted.Event, "max_queue", l.maxQueue)
	}
	l.queue = append(l.queue, e)
	l.mu.Unlock()

	slog.Debug("eventlog: queued", "event", e.Event, "content_id", e.ContentID)
	return e, true
}

// Flush returns the queued events and empties the queue.
func (l *Logger) Flush() []types.QueuedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

// FlushTo sends the queued events to sink. On failure they are put back at
// the front of the queue, unless the sink rejected them permanently.
func (l *Logger) FlushTo(ctx context.Context, sink Sink) Result {
	events := l.Flush()
	if len(events) == 0 {
		return Result{}
	}

	err := sink.Send(ctx, events)
	if err == nil {
		slog.Debug("eventlog: batch delivered", "count", len(events))
		return Result{Sent: len(events)}
	}

	if isPermanentError(err) {
		slog.Error("eventlog: batch rejected, discarding", "count", len(events), "err", err)
		return Result{Err: err}
	}

	l.requeue(events)
	slog.Warn("eventlog: flush failed, events re-queued", "count", len(events), "err", err)
	return Result{Err: err}
}

// requeue puts events back ahead of anything logged since the flush began,
// evicting from the front if the bound is exceeded.
func (l *Logger) requeue(events []types.QueuedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]types.QueuedEvent, 0, len(events)+len(l.queue))
	merged = append(merged, events...)
	merged = append(merged, l.queue...)
	if over := len(merged) - l.maxQueue; over > 0 {
		slog.Warn("eventlog: queue full after re-queue, evicted oldest events", "count", over)
		merged = merged[over:]
	}
	l.queue = merged
}

// Run flushes to sink every flush interval until ctx is cancelled, then
// flushes once more. After a transient failure the next attempt is delayed
// by exponential backoff instead of the flush interval.
func (l *Logger) Run(ctx context.Context, sink Sink) {
	bo := newBackoff()
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			res := l.FlushTo(fctx, sink)
			cancel()
			if res.Err != nil {
				slog.Warn("eventlog: final flush failed", "pending", l.Len(), "err", res.Err)
			} else if res.Sent > 0 {
				slog.Info("eventlog: final flush", "sent", res.Sent)
			}
			return
		case <-timer.C:
		}

		res := l.FlushTo(ctx, sink)
		wait := l.interval
		if res.Err != nil && !isPermanentError(res.Err) {
			wait = bo.next()
			slog.Warn("eventlog: will retry flush", "retry_in", wait)
		} else {
			bo.reset()
		}
		timer.Reset(wait)
	}
}

// SendTest sends one page_view to sink, outside the queue, to verify the
// endpoint wiring. Fields set in partial override the defaults. When
// respectConsent is true and consent is not granted nothing is sent.
func (l *Logger) SendTest(ctx context.Context, sink Sink, partial types.EventPayload, respectConsent bool) Result {
	if respectConsent && l.consent.Get().Tracking != types.ConsentGranted {
		return Result{Err: ErrConsentNotGranted}
	}

	p := partial
	if p.Event == "" {
		p.Event = types.EventPageView
	}
	if p.ContentID == "" {
		p.ContentID = TestContentID
	}
	if p.WidgetVersion == "" {
		p.WidgetVersion = TestWidgetVersion
	}
	if p.Attribution == nil {
		a := l.sessionAttribution()
		p.Attribution = &a
	}

	e := types.QueuedEvent{
		EventPayload: p,
		SessionID:    NewSessionID(),
		OccurredAt:   l.timestamp(),
	}
	if err := sink.Send(ctx, []types.QueuedEvent{e}); err != nil {
		return Result{Err: err}
	}
	return Result{Sent: 1}
}

func (l *Logger) sessionAttribution() types.Attribution {
	if l.attribution == nil {
		return types.Attribution{}
	}
	return l.attribution.Get()
}

func (l *Logger) timestamp() string {
	return l.now().UTC().Format(occurredAtLayout)
}
