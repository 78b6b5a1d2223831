package pipeline

import (
	"strconv"
	"time"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/page"
)

var nowFunc = time.Now

const (
	visitorTTL       = 365 * 24 * time.Hour
	sessionWindow    = 30 * time.Minute
	livenessInterval = 30 * time.Second
)

// identityManager owns visitor and session identity. The visitor id is a
// durable 365-day cookie analog; the session id expires after thirty
// minutes without interaction and is refreshed, not rotated, by activity.
type identityManager struct {
	rt *core.Runtime
}

func newIdentityManager(rt *core.Runtime) *identityManager {
	return &identityManager{rt: rt}
}

// ensure establishes visitor and session identity before any event is
// built, so the very first pageview already carries both ids.
func (m *identityManager) ensure() {
	local := m.rt.Local

	if visitor, ok := local.Get(core.KeyVisitorID); ok {
		local.Set(core.KeyReturningVisitor, "1", 0)
		// Sliding expiry: every boot extends the visitor id another year.
		local.Set(core.KeyVisitorID, visitor, visitorTTL)
	} else {
		local.Set(core.KeyVisitorID, core.NewID("vis"), visitorTTL)
	}

	if m.sessionAlive() {
		m.touch()
		return
	}
	m.startSession()
}

// bindLiveness keeps the session window open while the visitor interacts.
// The refresh is throttled; interaction storms cost one store write per
// interval, not one per event.
func (m *identityManager) bindLiveness() {
	refresh := core.Throttle(livenessInterval, m.refresh)
	win := m.rt.Window
	win.OnClick(func(page.Click) { refresh() })
	win.OnScroll(func(page.Scroll) { refresh() })
	win.OnKeyPress(func(page.KeyPress) { refresh() })
	win.OnTouch(func(page.Touch) { refresh() })
}

func (m *identityManager) sessionAlive() bool {
	if _, ok := m.rt.Local.Get(core.KeySessionID); !ok {
		return false
	}
	raw, ok := m.rt.Local.Get(core.KeySessionLastSeen)
	if !ok {
		return false
	}
	lastSeen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return nowFunc().UnixMilli()-lastSeen <= sessionWindow.Milliseconds()
}

// refresh extends the current session, or mints a new one when the
// inactivity window already lapsed.
func (m *identityManager) refresh() {
	if m.sessionAlive() {
		m.touch()
		return
	}
	m.startSession()
}

func (m *identityManager) startSession() {
	sessionID := core.NewID("ses")
	m.rt.Local.Set(core.KeySessionID, sessionID, 0)
	m.touch()

	loc := m.rt.Window.Location()
	visitor, _ := m.rt.Local.Get(core.KeyVisitorID)
	m.rt.Queue.Add(core.Event{
		EventType: "session_start",
		Page:      loc.Path,
		PageURL:   loc.Href,
		Timestamp: nowFunc().UnixMilli(),
		VisitorID: visitor,
		SessionID: sessionID,
		Referrer:  loc.Referrer,
	})
	m.rt.Bus.Emit(core.TopicSessionStart, core.SessionStartSignal{SessionID: sessionID})
}

func (m *identityManager) touch() {
	m.rt.Local.Set(core.KeySessionLastSeen, strconv.FormatInt(nowFunc().UnixMilli(), 10), 0)
}
