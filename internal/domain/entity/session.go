package entity

import "time"

type SessionHealth string

const (
	SessionHealthy    SessionHealth = "healthy"
	SessionUnhealthy  SessionHealth = "unhealthy"
	SessionTerminated SessionHealth = "terminated"
)

// SessionHolderFree marks a session that is in the pool and not reserved by
// any run.
const SessionHolderFree = "free"

// SessionRecord is the pool's bookkeeping view of one browser session. Runs
// never see this record, only a capability handle.
type SessionRecord struct {
	ID        string
	Holder    string
	Health    SessionHealth
	CreatedAt time.Time
}
