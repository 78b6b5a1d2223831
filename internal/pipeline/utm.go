package pipeline

import (
	"strings"

	"github.com/seentics/seentics-go/internal/core"
)

// captureUTM records the landing page's utm_* parameters in the session
// store. Attribution sticks to the session: later navigations do not
// overwrite it, and a fresh session starts clean.
func captureUTM(rt *core.Runtime) {
	query := rt.Window.Location().Query
	if len(query) == 0 {
		return
	}

	utm := make(map[string]string)
	for key, value := range query {
		if strings.HasPrefix(key, "utm_") && value != "" {
			utm[strings.TrimPrefix(key, "utm_")] = value
		}
	}
	if len(utm) == 0 {
		return
	}
	core.SetJSON(rt.Session, core.KeyUTM, utm, 0)
}
