package service

// Broadcaster pushes events to connected admin dashboards (avoids import cycle with ws)
type Broadcaster interface {
	BroadcastToAdmins(msgType string, payload interface{})
}

// Event types sent to admin dashboards
const (
	EventResultCreated = "result_created"
	EventSessionReset  = "session_reset"
)
