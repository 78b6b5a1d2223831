package funnels

import (
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/logging"
)

const batchPath = "/api/v1/funnels/batch"

// ProgressEvent is one reported funnel lifecycle transition.
type ProgressEvent struct {
	FunnelID  string `json:"funnel_id"`
	EventType string `json:"event_type"` // started, progress, conversion, dropoff
	Step      int    `json:"step"`
	StepName  string `json:"step_name,omitempty"`
	VisitorID string `json:"visitor_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Page      string `json:"page,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type batchPayload struct {
	SiteID string          `json:"siteId"`
	Events []ProgressEvent `json:"events"`
}

// sender buffers funnel events and flushes them on a fixed interval,
// independent of the core queue's own cadence. Failed batches roll back to
// the front of the buffer; the unload path drains through the beacon.
type sender struct {
	api      *core.APIClient
	siteID   string
	interval time.Duration

	mu       sync.Mutex
	buffer   []ProgressEvent
	stopChan chan struct{}
	started  bool
}

func newSender(api *core.APIClient, siteID string, interval time.Duration) *sender {
	return &sender{
		api:      api,
		siteID:   siteID,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the interval flush loop. Safe to call once.
func (s *sender) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

func (s *sender) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.stopChan:
			return
		}
	}
}

// Stop halts the flush loop.
func (s *sender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.stopChan)
		s.started = false
	}
}

// Add buffers one event for the next flush.
func (s *sender) Add(ev ProgressEvent) {
	s.mu.Lock()
	s.buffer = append(s.buffer, ev)
	s.mu.Unlock()
}

// Flush sends the buffered events, rolling the batch back on failure so
// retried events replay ahead of newer ones.
func (s *sender) Flush() {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := s.api.Post(batchPath, batchPayload{SiteID: s.siteID, Events: batch}); err != nil {
		logging.L().Warn("funnel batch delivery failed, requeueing", "count", len(batch), "error", err)
		s.mu.Lock()
		s.buffer = append(batch, s.buffer...)
		s.mu.Unlock()
	}
}

// FlushBeacon drains the buffer through the fire-and-forget path. Used at
// unload as the last resort.
func (s *sender) FlushBeacon() {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	s.api.Beacon(batchPath, batchPayload{SiteID: s.siteID, Events: batch})
}

func (s *sender) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}
