package nav

import "github.com/matheus3301/matrixtui/internal/chat"

// Focus is the panel receiving keys when no overlay is open.
type Focus int

const (
	FocusAccounts Focus = iota
	FocusRooms
	FocusChat
	FocusInput
)

func (f Focus) String() string {
	switch f {
	case FocusAccounts:
		return "accounts"
	case FocusRooms:
		return "rooms"
	case FocusChat:
		return "chat"
	case FocusInput:
		return "input"
	default:
		return "unknown"
	}
}

// Overlay identifies the modal surface currently capturing input.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLogin
	OverlayHelp
	OverlayRoomSwitcher
	OverlaySettings
	OverlayProfile
	OverlayRoomCreator
	OverlayRoomEditor
	OverlayRecovery
	OverlayMessageAction
	OverlayVerification
	OverlayEmojiPicker
	OverlayRoomInfo
)

var overlayNames = map[Overlay]string{
	OverlayNone:          "none",
	OverlayLogin:         "login",
	OverlayHelp:          "help",
	OverlayRoomSwitcher:  "room_switcher",
	OverlaySettings:      "settings",
	OverlayProfile:       "profile",
	OverlayRoomCreator:   "room_creator",
	OverlayRoomEditor:    "room_editor",
	OverlayRecovery:      "recovery",
	OverlayMessageAction: "message_action",
	OverlayVerification:  "verification",
	OverlayEmojiPicker:   "emoji_picker",
	OverlayRoomInfo:      "room_info",
}

func (o Overlay) String() string {
	if name, ok := overlayNames[o]; ok {
		return name
	}
	return "unknown"
}

// Form is the transient status every overlay carries.
type Form struct {
	Busy bool
	Err  string
}

// Fail records err on the form and clears the busy flag.
func (f *Form) Fail(msg string) {
	f.Busy = false
	f.Err = msg
}

// Done clears the busy flag and any previous error.
func (f *Form) Done() {
	f.Busy = false
	f.Err = ""
}

type payload interface {
	kind() Overlay
	form() *Form
}

// Composer is the input box state. It survives overlays and room switches.
type Composer struct {
	Input   Field
	ReplyTo *chat.ReplyRef
	typing  bool
}

// Typing reports whether a typing notification is currently active.
func (c *Composer) Typing() bool { return c.typing }

// State is the navigation machine: focus, at most one overlay, and the
// overlay's private fields.
type State struct {
	Focus         Focus
	AccountCursor int
	Composer      Composer

	current payload
	gen     uint64
}

// New returns a state focused on the room list with no overlay.
func New() *State {
	return &State{Focus: FocusRooms}
}

// Overlay returns the active overlay kind.
func (s *State) Overlay() Overlay {
	if s.current == nil {
		return OverlayNone
	}
	return s.current.kind()
}

// Gen identifies the currently open overlay instance. It changes on every
// open so results from tasks started by an earlier instance can be told apart.
func (s *State) Gen() uint64 { return s.gen }

// Form returns the active overlay's form when gen still names it.
func (s *State) Form(gen uint64) *Form {
	if s.current == nil || gen != s.gen {
		return nil
	}
	return s.current.form()
}

// Close dismisses the active overlay and discards its fields.
func (s *State) Close() {
	s.current = nil
}

// CloseIf dismisses the overlay only when gen is still current.
func (s *State) CloseIf(gen uint64) bool {
	if s.current == nil || gen != s.gen {
		return false
	}
	s.current = nil
	return true
}

func (s *State) open(p payload) uint64 {
	s.gen++
	s.current = p
	return s.gen
}

// SetReply starts a reply in the composer and focuses it.
func (s *State) SetReply(ref chat.ReplyRef) {
	s.Composer.ReplyTo = &ref
	s.Focus = FocusInput
}

// ResetComposer clears the composer text and reply target.
func (s *State) ResetComposer() {
	s.Composer.Input.Clear()
	s.Composer.ReplyTo = nil
	s.Composer.typing = false
}

// Accessors for the overlay payloads. Each returns nil unless its overlay is
// the active one.

func (s *State) Login() *LoginForm {
	p, _ := s.current.(*LoginForm)
	return p
}

func (s *State) Help() *HelpView {
	p, _ := s.current.(*HelpView)
	return p
}

func (s *State) Switcher() *Switcher {
	p, _ := s.current.(*Switcher)
	return p
}

func (s *State) Settings() *Settings {
	p, _ := s.current.(*Settings)
	return p
}

func (s *State) Profile() *ProfileForm {
	p, _ := s.current.(*ProfileForm)
	return p
}

func (s *State) Creator() *CreatorForm {
	p, _ := s.current.(*CreatorForm)
	return p
}

func (s *State) Editor() *EditorForm {
	p, _ := s.current.(*EditorForm)
	return p
}

func (s *State) Recovery() *RecoveryForm {
	p, _ := s.current.(*RecoveryForm)
	return p
}

func (s *State) MessageAction() *MessageMenu {
	p, _ := s.current.(*MessageMenu)
	return p
}

func (s *State) Verification() *VerifyView {
	p, _ := s.current.(*VerifyView)
	return p
}

func (s *State) EmojiPicker() *EmojiPicker {
	p, _ := s.current.(*EmojiPicker)
	return p
}

func (s *State) RoomInfo() *RoomInfoView {
	p, _ := s.current.(*RoomInfoView)
	return p
}
