package core

// Persisted client state layout. Identity keys live in the durable store
// (visitor and session identity must survive a restart within their TTLs);
// session-store keys deliberately do not.
const (
	KeyVisitorID        = "seentics_visitor_id"
	KeyReturningVisitor = "seentics_returning_visitor"
	KeySessionID        = "seentics_session_id"
	KeySessionLastSeen  = "seentics_session_last_seen"

	KeyUTM            = "seentics_utm"
	KeyFunnelProgress = "seentics_funnel_progress"
)
