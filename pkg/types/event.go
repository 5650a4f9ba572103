package types

import "time"

// EventName identifies a tracked interaction.
type EventName string

const (
	EventVideoStarted      EventName = "video_started"
	EventVideoCompleted    EventName = "video_completed"
	EventMarkerVisible     EventName = "marker_visible"
	EventProductClick      EventName = "product_click"
	EventAddToCart         EventName = "add_to_cart"
	EventProductImpression EventName = "product_impression"
	EventScrollDepth       EventName = "scroll_depth"
	EventWidgetLoaded      EventName = "widget_loaded"
	EventPageView          EventName = "page_view"
)

// EventNames lists every valid EventName in declaration order.
var EventNames = []EventName{
	EventVideoStarted,
	EventVideoCompleted,
	EventMarkerVisible,
	EventProductClick,
	EventAddToCart,
	EventProductImpression,
	EventScrollDepth,
	EventWidgetLoaded,
	EventPageView,
}

// Valid reports whether n is a known event name.
func (n EventName) Valid() bool {
	for _, v := range EventNames {
		if v == n {
			return true
		}
	}
	return false
}

// Location places an event inside a piece of content: seconds into a video,
// or how far down an article the reader scrolled.
type Location struct {
	TimecodeSeconds    *float64 `json:"timecodeSeconds,omitempty"`
	ScrollDepthPercent *float64 `json:"scrollDepthPercent,omitempty"`
}

// EventPayload is what a widget reports. The tracker enriches it into a
// QueuedEvent before it is sent.
type EventPayload struct {
	Event          EventName      `json:"event"`
	ContentID      string         `json:"contentId,omitempty"`
	ProductID      string         `json:"productId,omitempty"`
	MatchedKeyword string         `json:"matchedKeyword,omitempty"`
	WidgetVersion  string         `json:"widgetVersion,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	Viewable       *bool          `json:"viewable,omitempty"`
	CTA            string         `json:"cta,omitempty"`
	Attribution    *Attribution   `json:"attribution,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// QueuedEvent is an enriched payload waiting in (or sent from) the tracker queue.
type QueuedEvent struct {
	EventPayload
	SessionID  string `json:"sessionId"`
	OccurredAt string `json:"occurredAt"` // RFC3339 UTC
}

// StoredEvent is a QueuedEvent accepted by the server.
type StoredEvent struct {
	QueuedEvent
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// OccurredTime parses OccurredAt, falling back to ReceivedAt when it is
// missing or malformed.
func (e StoredEvent) OccurredTime() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, e.OccurredAt); err == nil {
		return t
	}
	return e.ReceivedAt
}

// Attribution carries the UTM parameters a session arrived with.
type Attribution struct {
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
}

// IsZero reports whether no UTM parameter is set.
func (a Attribution) IsZero() bool {
	return a.UTMSource == "" && a.UTMMedium == "" && a.UTMCampaign == ""
}

// ConsentStatus is the visitor's tracking consent.
type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "granted"
	ConsentDenied  ConsentStatus = "denied"
	ConsentUnknown ConsentStatus = "unknown"
)

// ParseConsentStatus maps s to a ConsentStatus. ok is false for unknown input.
func ParseConsentStatus(s string) (ConsentStatus, bool) {
	switch ConsentStatus(s) {
	case ConsentGranted, ConsentDenied, ConsentUnknown:
		return ConsentStatus(s), true
	}
	return ConsentUnknown, false
}

// ConsentState is the persisted consent record.
type ConsentState struct {
	Tracking  ConsentStatus `json:"tracking"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
}

// AnalyticsDay is one row of the dashboard performance chart.
type AnalyticsDay struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"` // percent
}
