// Package funnels maintains per-funnel progress state machines over the
// pageview and custom-event stream, persists progress for the session, and
// reports lifecycle events through its own buffered batch sender.
package funnels

import (
	"regexp"
	"strings"
)

// Step types and match strategies mirror the funnel builder vocabulary.
const (
	StepPageView = "page_view"
	StepEvent    = "event"

	MatchExact      = "exact"
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
	MatchRegex      = "regex"
)

// Step is one ordered funnel stage.
type Step struct {
	Order     int    `json:"order"`
	StepType  string `json:"step_type"`
	MatchType string `json:"match_type"`
	PagePath  string `json:"page_path,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Name      string `json:"name"`
}

// Funnel is a read-only definition fetched from the API. Steps are
// re-sorted by order right after fetch so everything downstream can assume
// ascending order.
type Funnel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Progress is the mutable per-funnel record. CurrentStep holds the order
// of the last completed step.
type Progress struct {
	CurrentStep    int   `json:"currentStep"`
	CompletedSteps []int `json:"completedSteps"`
	StartedAt      int64 `json:"startedAt"`
}

// matchValue applies one match strategy. A regex that does not compile is
// treated as a non-match; a malformed funnel definition must never take the
// host page down.
func matchValue(matchType, pattern, value string) bool {
	switch matchType {
	case MatchContains:
		return strings.Contains(value, pattern)
	case MatchStartsWith:
		return strings.HasPrefix(value, pattern)
	case MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	default:
		return value == pattern
	}
}

func stepMatchesPageview(step Step, path string) bool {
	return step.StepType == StepPageView && matchValue(step.MatchType, step.PagePath, path)
}

func stepMatchesEvent(step Step, eventName string) bool {
	return step.StepType == StepEvent && matchValue(step.MatchType, step.EventType, eventName)
}
