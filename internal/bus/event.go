package bus

import "time"

// Event kinds published by the client.
const (
	KindAccountStatus   = "account.status_changed"
	KindAccountAdded    = "account.added"
	KindAccountRemoved  = "account.removed"
	KindMessageReceived = "message.received"
	KindMessageSent     = "message.sent"
	KindMessageRedacted = "message.redacted"
	KindHistoryLoaded   = "message.history_loaded"
	KindRoomsUpdated    = "room.list_updated"
	KindRoomRemoved     = "room.removed"
	KindCacheCleared    = "room.cache_cleared"
	KindLoopStarted     = "app.loop_started"
	KindLoopStopped     = "app.loop_stopped"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
