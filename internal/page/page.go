// Package page models the host page the tracker pipeline is embedded in.
//
// The trackers never touch a real DOM; they consume interaction events,
// location state, and rendering capabilities through this harness. The
// embedding application (or the replay CLI, or a test) drives the harness
// by dispatching events into it.
package page

import "strings"

// Location describes where the page currently is.
type Location struct {
	Href     string
	Hostname string
	Path     string
	Query    map[string]string
	Title    string
	Referrer string
}

// Element is a snapshot of a node involved in an interaction.
type Element struct {
	Tag      string
	ID       string
	Classes  []string
	Text     string
	Href     string
	TypeAttr string
	Attrs    map[string]string
	InForm   bool
	Selector string
}

// HasClass reports whether the element carries the given class.
func (e Element) HasClass(name string) bool {
	for _, c := range e.Classes {
		if c == name {
			return true
		}
	}
	return false
}

// Attr returns an attribute value, or "" when absent.
func (e Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// Click is a pointer interaction with page coordinates.
type Click struct {
	Target Element
	X, Y   int
}

// MouseMove is a raw pointer position sample.
type MouseMove struct {
	X, Y int
}

// Scroll carries the new scroll offsets after a scroll interaction.
type Scroll struct {
	Top, Left int
}

// FormField is one input captured at submit time.
type FormField struct {
	Name    string
	Type    string
	Value   string
	Checked bool
}

// FormSubmit is a form submission with its field snapshot.
type FormSubmit struct {
	FormID string
	Action string
	Fields []FormField
}

// VideoProgress reports playback position for a media element.
type VideoProgress struct {
	Src         string
	CurrentTime float64
	Duration    float64
}

// KeyPress and Touch exist so session liveness can observe them; their
// payloads are deliberately minimal.
type KeyPress struct {
	Key string
}

type Touch struct {
	X, Y int
}

// Message is a cross-frame protocol message (postMessage analog).
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Injection is a UI artifact placed on the page by an automation action.
type Injection struct {
	Kind       string
	HTML       string
	CSS        string
	WorkflowID string
	NodeID     string
}

// Device breakpoints follow the usual responsive cutoffs.
const (
	mobileMaxWidth = 768
	tabletMaxWidth = 1024
)

// MatchesSelector supports the selector vocabulary remote configs use:
// "#id", ".class", a bare tag name, or the element's full selector path.
func MatchesSelector(el Element, selector string) bool {
	if selector == "" {
		return false
	}
	switch {
	case strings.HasPrefix(selector, "#"):
		return el.ID == selector[1:]
	case strings.HasPrefix(selector, "."):
		return el.HasClass(selector[1:])
	default:
		return strings.EqualFold(el.Tag, selector) || el.Selector == selector
	}
}

// DeviceTypeFor buckets a viewport width into desktop/tablet/mobile.
func DeviceTypeFor(viewportWidth int) string {
	switch {
	case viewportWidth <= mobileMaxWidth:
		return "mobile"
	case viewportWidth <= tabletMaxWidth:
		return "tablet"
	default:
		return "desktop"
	}
}
