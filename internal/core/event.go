// Package core is the shared tracker runtime: identity generation, TTL
// key-value storage, the synchronous pub/sub bus, the idle scheduler, the
// batching event queue, and the collection API client. Every other tracker
// receives one *Runtime and waits for its ready signal.
package core

import "github.com/seentics/seentics-go/internal/page"

// Event is one queued analytics record. It is built synchronously at the
// call site; enrichment fields are filled from a cached device profile that
// is computed off the hot path.
type Event struct {
	EventType  string         `json:"event_type"`
	EventName  string         `json:"event_name,omitempty"`
	PageViewID string         `json:"page_view_id,omitempty"`
	Page       string         `json:"page"`
	PageURL    string         `json:"page_url"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  int64          `json:"timestamp"`

	VisitorID string            `json:"visitor_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Browser   string            `json:"browser,omitempty"`
	Device    string            `json:"device,omitempty"`
	OS        string            `json:"os,omitempty"`
	Referrer  string            `json:"referrer,omitempty"`
	UTM       map[string]string `json:"utm,omitempty"`
}

// Bus topics form a closed set so emit/subscribe pairs stay in agreement.
// Payload types are listed next to each topic.
const (
	TopicReady            = "core:ready"         // payload: nil
	TopicNavigation       = "page:navigation"    // payload: page.Location
	TopicPageview         = "analytics:pageview" // payload: PageviewSignal
	TopicCustomEvent      = "analytics:event"    // payload: CustomEventSignal
	TopicClick            = "analytics:click"    // payload: ClickSignal
	TopicSessionStart     = "session:start"      // payload: SessionStartSignal
	TopicFunnelStart      = "funnel:start"       // payload: FunnelSignal
	TopicFunnelProgress   = "funnel:progress"    // payload: FunnelSignal
	TopicFunnelConversion = "funnel:conversion"  // payload: FunnelSignal
)

// PageviewSignal announces a pageview after it was enqueued.
type PageviewSignal struct {
	Path       string
	URL        string
	Title      string
	PageViewID string
}

// CustomEventSignal announces a custom event after it was enqueued.
type CustomEventSignal struct {
	Name       string
	Path       string
	Properties map[string]any
}

// ClickSignal announces a tracked click.
type ClickSignal struct {
	Element page.Element
	Path    string
}

// SessionStartSignal announces a freshly minted session identifier.
type SessionStartSignal struct {
	SessionID string
}

// FunnelSignal announces funnel lifecycle transitions.
type FunnelSignal struct {
	FunnelID string
	Step     int
}
