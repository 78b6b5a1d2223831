// Package workflows runs the in-page behavior automation engine: it
// fetches active definitions, wires DOM and timer triggers, evaluates a
// small fixed condition vocabulary, and executes actions subject to
// per-node frequency caps.
package workflows

import (
	"strings"

	"github.com/blang/semver"
)

// Node roles within an automation graph.
const (
	NodeTrigger   = "Trigger"
	NodeCondition = "Condition"
	NodeAction    = "Action"
)

// Frequency caps for action nodes.
const (
	FreqEveryTrigger   = "every_trigger"
	FreqOncePerSession = "once_per_session"
	FreqOnceEver       = "once_ever"
)

// NodeData carries the node's role, display title, and settings blob.
type NodeData struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Node is one vertex in the automation graph.
type Node struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// Edge is a directed connection between nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Workflow is one behavior automation definition.
type Workflow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	MinVersion string `json:"min_version,omitempty"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}

// nodeByID returns the node with the given id.
func (w Workflow) nodeByID(id string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// nextNode follows the single outgoing edge from a node.
func (w Workflow) nextNode(fromID string) (Node, bool) {
	for _, e := range w.Edges {
		if e.Source == fromID {
			return w.nodeByID(e.Target)
		}
	}
	return Node{}, false
}

// triggers returns every trigger node whose title matches.
func (w Workflow) triggers(title string) []Node {
	var out []Node
	for _, n := range w.Nodes {
		if n.Data.Type == NodeTrigger && strings.EqualFold(n.Data.Title, title) {
			out = append(out, n)
		}
	}
	return out
}

// settingString reads a string setting, "" when absent.
func (d NodeData) settingString(key string) string {
	if d.Settings == nil {
		return ""
	}
	if v, ok := d.Settings[key].(string); ok {
		return v
	}
	return ""
}

// settingInt reads a numeric setting; JSON numbers arrive as float64.
func (d NodeData) settingInt(key string) int {
	if d.Settings == nil {
		return 0
	}
	switch v := d.Settings[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// compatible reports whether this runtime version satisfies the
// definition's min_version. Unparseable versions fail open: a malformed
// constraint must not disable an automation.
func (w Workflow) compatible(runtimeVersion string) bool {
	if w.MinVersion == "" {
		return true
	}
	min, err := semver.ParseTolerant(w.MinVersion)
	if err != nil {
		return true
	}
	current, err := semver.ParseTolerant(runtimeVersion)
	if err != nil {
		return true
	}
	return current.GTE(min)
}

// active filters fetched definitions down to runnable ones.
func active(workflows []Workflow, runtimeVersion string) []Workflow {
	var out []Workflow
	for _, w := range workflows {
		if !strings.EqualFold(w.Status, "active") {
			continue
		}
		if !w.compatible(runtimeVersion) {
			continue
		}
		out = append(out, w)
	}
	return out
}
