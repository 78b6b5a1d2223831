package heatmap

import (
	"github.com/seentics/seentics-go/internal/page"
)

// Cross-frame protocol message types shared with the dashboard viewer.
const (
	msgGetDimensions = "SEENTICS_GET_DIMENSIONS"
	msgDimensions    = "SEENTICS_DIMENSIONS"
	msgSetScroll     = "SEENTICS_SET_SCROLL"
	msgScroll        = "SEENTICS_SCROLL"
)

// handleMessage services the hosting dashboard when this window is
// embedded in the heatmap viewer: dimension queries get the full scroll
// dimensions back, and scroll commands are applied directly.
func (t *Tracker) handleMessage(m page.Message) {
	switch m.Type {
	case msgGetDimensions:
		docWidth, docHeight := t.rt.Window.DocumentSize()
		loc := t.rt.Window.Location()
		t.rt.Window.PostToParent(page.Message{
			Type: msgDimensions,
			Data: map[string]any{
				"height": docHeight,
				"width":  docWidth,
				"left":   0,
				"url":    loc.Href,
			},
		})
	case msgSetScroll:
		left := intFromMessage(m, "left")
		top := intFromMessage(m, "top")
		t.rt.Window.ScrollTo(left, top)
	}
}

// relayScroll posts the recorder's own scroll position outward so a
// hosting viewer can keep its overlay aligned.
func (t *Tracker) relayScroll(s page.Scroll) {
	t.rt.Window.PostToParent(page.Message{
		Type: msgScroll,
		Data: map[string]any{
			"scrollTop":  s.Top,
			"scrollLeft": s.Left,
		},
	})
}

func intFromMessage(m page.Message, key string) int {
	if m.Data == nil {
		return 0
	}
	switch v := m.Data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
