// Package heatmap samples mouse movement and click coordinates into a
// device-aware 0–1000 virtual space, buffers them, and ships them on a
// best-effort basis. Heatmap data is lossy by design: points are dropped on
// delivery failure because replaying high-volume mouse data is not worth
// the bandwidth.
package heatmap

// coordSpace is the virtual resolution both axes are mapped into, so
// heatmaps stay comparable across viewport sizes.
const coordSpace = 1000

// canonicalContentWidth is the assumed fixed max-width of centered desktop
// layouts. Desktop x-coordinates are normalized against this width rather
// than the raw viewport, because content does not stretch with the window.
const canonicalContentWidth = 1440

// Point is one buffered heatmap sample.
type Point struct {
	Type       string `json:"type"` // pageview, move, click
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Selector   string `json:"selector,omitempty"`
	URL        string `json:"url"`
	DeviceType string `json:"device_type"`
	Timestamp  int64  `json:"timestamp"`
}

// normalizeX maps a document x-coordinate into the virtual space. Mobile
// layouts are full-bleed, so they scale proportionally. Desktop and tablet
// layouts are assumed centered with fixed-width content, so the coordinate
// is taken relative to the centered content box. The desktop result can
// fall outside [0,1000] for very wide viewports; that is preserved
// deliberately so far-margin clicks stay distinguishable from content-edge
// clicks.
func normalizeX(x, viewportWidth int, deviceType string) int {
	if viewportWidth <= 0 {
		return 0
	}
	if deviceType == "mobile" {
		return x * coordSpace / viewportWidth
	}
	offset := (viewportWidth - canonicalContentWidth) / 2
	return (x - offset) * coordSpace / canonicalContentWidth
}

// normalizeY maps a document y-coordinate into the virtual space, clamped
// to [0,1000] of the full document height.
func normalizeY(y, documentHeight int) int {
	if documentHeight <= 0 {
		return 0
	}
	n := y * coordSpace / documentHeight
	if n < 0 {
		return 0
	}
	if n > coordSpace {
		return coordSpace
	}
	return n
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
