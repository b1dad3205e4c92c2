package app

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/matrixtui/internal/accounts"
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/outbox"
)

// Event is anything the coordinator loop consumes. The set is closed.
type Event interface {
	isEvent()
}

// KeyPressed is a terminal key event.
type KeyPressed struct {
	Key *tcell.EventKey
}

// Tick is the once-a-second low-priority clock.
type Tick struct {
	Now time.Time
}

// Backend wraps an event from a sync loop or verification watcher. Gen is
// the sync task generation, zero for watcher events.
type Backend struct {
	Event backend.Event
	Gen   uint64
}

// Task identifies the operation a background result belongs to. Gen is the
// overlay generation that started it, zero when no overlay did.
type Task struct {
	Op      string
	Account string
	Room    string
	Gen     uint64
}

// RestoreDone carries the saved sessions reopened at startup.
type RestoreDone struct {
	Result accounts.RestoreResult
}

type LoginDone struct {
	Task
	Session accounts.Session
	Err     error
}

// RoomsLoaded is the merged room list of every account that answered.
// Failed accounts keep their previous rooms.
type RoomsLoaded struct {
	Rooms    []chat.Room
	Failures map[string]error
}

// HistoryLoaded is the initial page for the room opened with Seq.
type HistoryLoaded struct {
	Seq      int
	RoomID   string
	Page     backend.HistoryPage
	Archived []chat.Message
	Unread   int
	Err      error
}

// OlderLoaded is a backward page fetched with token From.
type OlderLoaded struct {
	RoomID string
	From   string
	Page   backend.HistoryPage
	Err    error
}

// Sent reports a finished outbox job.
type Sent struct {
	Result outbox.Result
}

type RoomCreated struct {
	Task
	RoomID string
	Err    error
}

type RoomEdited struct {
	Task
	Field int
	Value string
	Err   error
}

// RoomLeft reports a leave, or a leave plus forget when Deleted is set.
type RoomLeft struct {
	Task
	Deleted bool
	Err     error
}

type ProfileLoaded struct {
	Task
	Name string
	Err  error
}

type ProfileUpdated struct {
	Task
	Field int
	Value string
	Err   error
}

type KeysRecovered struct {
	Task
	Err error
}

type RoomInfoLoaded struct {
	Task
	Details backend.RoomDetails
	Err     error
}

// VerificationStarted carries the request created for a self-initiated
// verification.
type VerificationStarted struct {
	Task
	Request backend.VerificationRequest
	Err     error
}

// VerificationAttached hands over the request object of an incoming flow
// once it was looked up for accepting.
type VerificationAttached struct {
	FlowID  string
	Request backend.VerificationRequest
}

func (KeyPressed) isEvent()           {}
func (Tick) isEvent()                 {}
func (Backend) isEvent()              {}
func (RestoreDone) isEvent()          {}
func (LoginDone) isEvent()            {}
func (RoomsLoaded) isEvent()          {}
func (HistoryLoaded) isEvent()        {}
func (OlderLoaded) isEvent()          {}
func (Sent) isEvent()                 {}
func (RoomCreated) isEvent()          {}
func (RoomEdited) isEvent()           {}
func (RoomLeft) isEvent()             {}
func (ProfileLoaded) isEvent()        {}
func (ProfileUpdated) isEvent()       {}
func (KeysRecovered) isEvent()        {}
func (RoomInfoLoaded) isEvent()       {}
func (VerificationStarted) isEvent()  {}
func (VerificationAttached) isEvent() {}
