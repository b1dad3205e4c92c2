package backend

import (
	"time"

	"github.com/matheus3301/matrixtui/internal/chat"
)

// Event is produced by sync loops and verification watchers. The set of
// implementations is closed.
type Event interface {
	isBackendEvent()
}

// MessageReceived is a timeline message.
type MessageReceived struct {
	Account   string
	RoomID    string
	EventID   string
	TxnID     string
	Sender    string
	Content   chat.Content
	Timestamp time.Time
	ReplyTo   string
	Replaces  string // set on edits
}

// ReactionReceived is an annotation on a message.
type ReactionReceived struct {
	Account  string
	RoomID   string
	TargetID string
	Key      string
	Sender   string
}

// MessageRedacted removes a message.
type MessageRedacted struct {
	Account string
	RoomID  string
	EventID string
}

// TypingChanged carries the users currently typing in a room.
type TypingChanged struct {
	Account string
	RoomID  string
	UserIDs []string
}

// RoomListChanged signals joins, leaves, renames or unread changes.
type RoomListChanged struct {
	Account string
}

// SyncCompleted is emitted after each successful sync response.
type SyncCompleted struct {
	Account string
}

// SyncFailed is emitted when a sync loop stops on an error.
type SyncFailed struct {
	Account string
	Err     error
}

// VerificationRequestReceived is an inbound request from another device.
type VerificationRequestReceived struct {
	Account string
	UserID  string
	FlowID  string
}

// SasStarted hands the coordinator the SAS object of a flow.
type SasStarted struct {
	FlowID string
	Sas    Sas
}

// SasEmojisReady carries the short authentication string.
type SasEmojisReady struct {
	FlowID string
	Emojis []Emoji
}

// SasDone means both sides confirmed.
type SasDone struct {
	FlowID string
}

// SasCancelled ends a flow. Reason is always set.
type SasCancelled struct {
	FlowID string
	Reason string
}

func (MessageReceived) isBackendEvent()             {}
func (ReactionReceived) isBackendEvent()            {}
func (MessageRedacted) isBackendEvent()             {}
func (TypingChanged) isBackendEvent()               {}
func (RoomListChanged) isBackendEvent()             {}
func (SyncCompleted) isBackendEvent()               {}
func (SyncFailed) isBackendEvent()                  {}
func (VerificationRequestReceived) isBackendEvent() {}
func (SasStarted) isBackendEvent()                  {}
func (SasEmojisReady) isBackendEvent()              {}
func (SasDone) isBackendEvent()                     {}
func (SasCancelled) isBackendEvent()                {}
