package workflows

import (
	"strings"

	"github.com/seentics/seentics-go/internal/core"
)

// evalCondition evaluates one condition node against current page and
// visitor state. The vocabulary is deliberately tiny; an unrecognized
// condition title passes, so a malformed definition degrades to "run the
// actions" instead of silently disabling the whole automation.
func (e *Engine) evalCondition(node Node) bool {
	title := strings.ToLower(node.Data.Title)
	switch {
	case strings.Contains(title, "url"):
		value := node.Data.settingString("value")
		if value == "" {
			return true
		}
		return strings.Contains(e.rt.Window.Location().Path, value)

	case strings.Contains(title, "returning") || strings.Contains(title, "visitor"):
		want := strings.ToLower(node.Data.settingString("visitor_type"))
		_, returning := e.rt.Local.Get(core.KeyReturningVisitor)
		switch want {
		case "new":
			return !returning
		case "returning":
			return returning
		default:
			return true
		}

	case strings.Contains(title, "device"):
		want := strings.ToLower(node.Data.settingString("device"))
		if want == "" {
			return true
		}
		return e.rt.Window.DeviceType() == want

	default:
		return true
	}
}
