package workflows

import (
	"github.com/seentics/seentics-go/internal/core"
)

// frequencyGate enforces per-(workflow,node) action caps. The flag is
// written the moment an execution is allowed, before the action runs, so
// concurrent listeners firing in the same tick cannot double-execute a
// capped action.
type frequencyGate struct {
	local   core.Store
	session core.Store
}

func freqKey(workflowID, nodeID string) string {
	return "seentics_wf_" + workflowID + "_" + nodeID
}

// allow checks the cap and records the execution in one step.
// Unrecognized frequencies are treated as once_ever: the conservative
// reading of a value the runtime does not understand.
func (g *frequencyGate) allow(frequency, workflowID, nodeID string) bool {
	switch frequency {
	case FreqEveryTrigger:
		return true
	case FreqOncePerSession:
		return g.checkAndSet(g.session, workflowID, nodeID)
	default:
		return g.checkAndSet(g.local, workflowID, nodeID)
	}
}

func (g *frequencyGate) checkAndSet(store core.Store, workflowID, nodeID string) bool {
	key := freqKey(workflowID, nodeID)
	if _, seen := store.Get(key); seen {
		return false
	}
	store.Set(key, "1", 0)
	return true
}
