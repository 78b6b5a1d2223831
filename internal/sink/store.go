package sink

import (
	"sync"

	"github.com/seentics/seentics-go/internal/core"
)

// FunnelEvent is one funnel lifecycle record as received on the wire.
type FunnelEvent struct {
	FunnelID  string `json:"funnel_id"`
	EventType string `json:"event_type"`
	Step      int    `json:"step"`
	StepName  string `json:"step_name,omitempty"`
	VisitorID string `json:"visitor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Page      string `json:"page,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HeatmapPoint is one recorded coordinate.
type HeatmapPoint struct {
	Type       string `json:"type"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Selector   string `json:"selector,omitempty"`
	URL        string `json:"url"`
	DeviceType string `json:"device_type,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Execution is one reported workflow action execution.
type Execution struct {
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	ActionType string `json:"action_type"`
	VisitorID  string `json:"visitor_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Page       string `json:"page"`
	Timestamp  int64  `json:"timestamp"`
}

// Store aggregates everything the sink receives, in memory. It exists so a
// developer can point a client at the sink and inspect what actually
// arrived, not to persist anything.
type Store struct {
	mu sync.Mutex

	events       []core.Event
	byType       map[string]int
	byPage       map[string]int
	funnelEvents []FunnelEvent
	byFunnel     map[string]map[string]int
	points       []HeatmapPoint
	pointsByURL  map[string]int
	executions   []Execution
	visitors     map[string]struct{}
	sessions     map[string]struct{}
}

func newStore() *Store {
	return &Store{
		byType:      make(map[string]int),
		byPage:      make(map[string]int),
		byFunnel:    make(map[string]map[string]int),
		pointsByURL: make(map[string]int),
		visitors:    make(map[string]struct{}),
		sessions:    make(map[string]struct{}),
	}
}

func (s *Store) addEvents(events []core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.events = append(s.events, ev)
		s.byType[ev.EventType]++
		if ev.EventType == "pageview" {
			s.byPage[ev.Page]++
		}
		if ev.VisitorID != "" {
			s.visitors[ev.VisitorID] = struct{}{}
		}
		if ev.SessionID != "" {
			s.sessions[ev.SessionID] = struct{}{}
		}
	}
}

func (s *Store) addFunnelEvents(events []FunnelEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.funnelEvents = append(s.funnelEvents, ev)
		counts := s.byFunnel[ev.FunnelID]
		if counts == nil {
			counts = make(map[string]int)
			s.byFunnel[ev.FunnelID] = counts
		}
		counts[ev.EventType]++
	}
}

func (s *Store) addPoints(points []HeatmapPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points = append(s.points, p)
		s.pointsByURL[p.URL]++
	}
}

func (s *Store) addExecution(ex Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, ex)
}

// Events returns a copy of every received analytics event.
func (s *Store) Events() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event{}, s.events...)
}

// Stats summarizes everything received so far.
func (s *Store) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string]int, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}
	byPage := make(map[string]int, len(s.byPage))
	for k, v := range s.byPage {
		byPage[k] = v
	}
	byFunnel := make(map[string]map[string]int, len(s.byFunnel))
	for id, counts := range s.byFunnel {
		copied := make(map[string]int, len(counts))
		for k, v := range counts {
			copied[k] = v
		}
		byFunnel[id] = copied
	}

	return map[string]any{
		"events_total":      len(s.events),
		"events_by_type":    byType,
		"pageviews_by_page": byPage,
		"unique_visitors":   len(s.visitors),
		"unique_sessions":   len(s.sessions),
		"funnel_events":     len(s.funnelEvents),
		"funnel_breakdown":  byFunnel,
		"heatmap_points":    len(s.points),
		"heatmap_by_url":    s.copyPointsByURL(),
		"action_executions": len(s.executions),
	}
}

func (s *Store) copyPointsByURL() map[string]int {
	out := make(map[string]int, len(s.pointsByURL))
	for k, v := range s.pointsByURL {
		out[k] = v
	}
	return out
}
