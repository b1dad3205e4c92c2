package nav

import (
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// Command is an intent produced by a key press that needs state the
// navigation machine does not own. The coordinator executes it.
type Command interface {
	isCommand()
}

type (
	Quit struct{}

	// Room list.
	MoveRoom         struct{ Delta int }
	MoveFavorite     struct{ Delta int }
	OpenSelectedRoom struct{}
	OpenRoom         struct{ Index int }
	ToggleFavorite   struct{}

	// Message list.
	SelectPrevMessage  struct{}
	SelectNextMessage  struct{}
	SelectFirstMessage struct{}
	SelectLastMessage  struct{}
	ClearSelection     struct{}
	OpenMessageActions struct{}
	StartReply         struct{}
	PickReaction       struct{}

	// Composer.
	SendMessage struct {
		Body  string
		Reply *chat.ReplyRef
	}
	Typing struct{ Active bool }

	// Overlays that need data from the coordinator before they open.
	OpenRoomEditor struct{}
	LoadRoomInfo   struct {
		Gen    uint64
		RoomID string
	}
	LoadProfile struct {
		Gen       uint64
		AccountID string
	}

	// Form submissions. Gen names the overlay instance that started them.
	SubmitLogin struct {
		Gen        uint64
		Homeserver string
		Username   string
		Password   string
	}
	CreateRoom struct {
		Gen       uint64
		AccountID string
		Request   backend.CreateRoomRequest
	}
	EditRoom struct {
		Gen       uint64
		RoomID    string
		AccountID string
		Field     int
		Value     string
	}
	LeaveRoom struct {
		Gen       uint64
		RoomID    string
		AccountID string
	}
	DeleteRoom struct {
		Gen       uint64
		RoomID    string
		AccountID string
	}
	UpdateProfile struct {
		Gen       uint64
		AccountID string
		Field     int
		Value     string
	}
	RecoverKeys struct {
		Gen       uint64
		AccountID string
		Key       string
	}
	EditMessage struct {
		Gen     uint64
		RoomID  string
		EventID string
		Body    string
	}
	DeleteMessage struct {
		Gen     uint64
		RoomID  string
		EventID string
	}
	SendReaction struct {
		RoomID  string
		EventID string
		Key     string
	}

	// Settings.
	ReconnectAccount struct{ AccountID string }
	RemoveAccount    struct{ AccountID string }
	SetTheme         struct{ Name string }
	SetSort          struct{ Index int }
	ClearCache       struct{}

	// Verification.
	StartVerification struct {
		Gen       uint64
		AccountID string
	}
	AcceptVerification  struct{}
	ConfirmVerification struct{}
	RejectVerification  struct{}
	CancelVerification  struct{}
	DismissVerification struct{}
)

func (Quit) isCommand()                {}
func (MoveRoom) isCommand()            {}
func (MoveFavorite) isCommand()        {}
func (OpenSelectedRoom) isCommand()    {}
func (OpenRoom) isCommand()            {}
func (ToggleFavorite) isCommand()      {}
func (SelectPrevMessage) isCommand()   {}
func (SelectNextMessage) isCommand()   {}
func (SelectFirstMessage) isCommand()  {}
func (SelectLastMessage) isCommand()   {}
func (ClearSelection) isCommand()      {}
func (OpenMessageActions) isCommand()  {}
func (StartReply) isCommand()          {}
func (PickReaction) isCommand()        {}
func (SendMessage) isCommand()         {}
func (Typing) isCommand()              {}
func (OpenRoomEditor) isCommand()      {}
func (LoadRoomInfo) isCommand()        {}
func (LoadProfile) isCommand()         {}
func (SubmitLogin) isCommand()         {}
func (CreateRoom) isCommand()          {}
func (EditRoom) isCommand()            {}
func (LeaveRoom) isCommand()           {}
func (DeleteRoom) isCommand()          {}
func (UpdateProfile) isCommand()       {}
func (RecoverKeys) isCommand()         {}
func (EditMessage) isCommand()         {}
func (DeleteMessage) isCommand()       {}
func (SendReaction) isCommand()        {}
func (ReconnectAccount) isCommand()    {}
func (RemoveAccount) isCommand()       {}
func (SetTheme) isCommand()            {}
func (SetSort) isCommand()             {}
func (ClearCache) isCommand()          {}
func (StartVerification) isCommand()   {}
func (AcceptVerification) isCommand()  {}
func (ConfirmVerification) isCommand() {}
func (RejectVerification) isCommand()  {}
func (CancelVerification) isCommand()  {}
func (DismissVerification) isCommand() {}
