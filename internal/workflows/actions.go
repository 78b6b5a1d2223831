package workflows

import (
	"strings"

	"github.com/seentics/seentics-go/internal/core"
	"github.com/seentics/seentics-go/internal/page"
)

const executionPath = "/api/v1/workflows/execution/action"

// RenderTarget is where visual actions land. The page window satisfies it;
// embedders can swap in their own surface.
type RenderTarget interface {
	Inject(page.Injection)
	Dismiss(kind string)
}

// executionRecord is the server-side audit entry for one executed action.
type executionRecord struct {
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	ActionType string `json:"action_type"`
	VisitorID  string `json:"visitor_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Page       string `json:"page"`
	Timestamp  int64  `json:"timestamp"`
}

// execAction performs one action node. Visual actions go through the render
// target; every execution is reported on the fire-and-forget path so a slow
// collection API cannot stall the page.
func (e *Engine) execAction(wf Workflow, node Node) {
	title := strings.ToLower(node.Data.Title)
	switch {
	case strings.Contains(title, "modal"):
		e.target.Inject(page.Injection{
			Kind:       "modal",
			HTML:       node.Data.settingString("html"),
			CSS:        node.Data.settingString("css"),
			WorkflowID: wf.ID,
			NodeID:     node.ID,
		})

	case strings.Contains(title, "banner"):
		e.target.Inject(page.Injection{
			Kind:       "banner",
			HTML:       node.Data.settingString("html"),
			CSS:        node.Data.settingString("css"),
			WorkflowID: wf.ID,
			NodeID:     node.ID,
		})

	case strings.Contains(title, "redirect"):
		url := node.Data.settingString("url")
		if url == "" {
			e.log.Debug("redirect action without url", "workflow_id", wf.ID, "node_id", node.ID)
			return
		}
		e.rt.Window.Redirect(url)

	default:
		e.log.Debug("unknown action", "workflow_id", wf.ID, "title", node.Data.Title)
		return
	}

	e.rt.API.Beacon(executionPath, executionRecord{
		WorkflowID: wf.ID,
		NodeID:     node.ID,
		ActionType: node.Data.Title,
		VisitorID:  e.visitorID(),
		SessionID:  e.sessionID(),
		Page:       e.rt.Window.Location().Path,
		Timestamp:  nowFunc().UnixMilli(),
	})
}

func (e *Engine) visitorID() string {
	v, _ := e.rt.Local.Get(core.KeyVisitorID)
	return v
}

func (e *Engine) sessionID() string {
	v, _ := e.rt.Local.Get(core.KeySessionID)
	return v
}
