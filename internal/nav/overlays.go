package nav

import (
	"strings"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// DefaultHomeserver pre-fills the login form.
const DefaultHomeserver = "matrix.org"

// Reactions offered by the emoji picker, in display order.
var Reactions = []string{"👍", "❤️", "😂", "😮", "😢", "🎉", "🔥", "👀"}

// LoginForm fields, in tab order.
const (
	LoginHomeserver = iota
	LoginUsername
	LoginPassword
	loginFields
)

type LoginForm struct {
	Form
	Homeserver Field
	Username   Field
	Password   Field
	Focus      int
}

func (*LoginForm) kind() Overlay { return OverlayLogin }
func (p *LoginForm) form() *Form { return &p.Form }
func (p *LoginForm) field() *Field {
	switch p.Focus {
	case LoginHomeserver:
		return &p.Homeserver
	case LoginUsername:
		return &p.Username
	default:
		return &p.Password
	}
}

type HelpView struct {
	Form
	Scroll int
}

func (*HelpView) kind() Overlay { return OverlayHelp }
func (p *HelpView) form() *Form { return &p.Form }

// Switcher is the fuzzy room picker. Matches holds indices into the room
// list, best match first.
type Switcher struct {
	Form
	Query    Field
	Matches  []int
	Selected int
}

func (*Switcher) kind() Overlay { return OverlayRoomSwitcher }
func (p *Switcher) form() *Form { return &p.Form }

// SettingsLevel is one screen of the nested settings menu.
type SettingsLevel int

const (
	SettingsTop SettingsLevel = iota
	SettingsAccounts
	SettingsAccountActions
	SettingsVerify
	SettingsTheme
	SettingsSort
)

var (
	settingsTopItems    = []string{"Accounts", "Theme", "Sort", "Clear Cache"}
	settingsActionItems = []string{"Reconnect", "Remove", "Edit Profile", "Verify Session"}
	settingsVerifyItems = []string{"Recovery Key", "Another Device"}
	settingsAddAccount  = "Add Account"
)

// SettingsFrame is one level on the settings stack.
type SettingsFrame struct {
	Level  SettingsLevel
	Cursor int
}

type Settings struct {
	Form
	stack []SettingsFrame
}

func (*Settings) kind() Overlay { return OverlaySettings }
func (p *Settings) form() *Form { return &p.Form }

// Frame returns the innermost menu level.
func (p *Settings) Frame() SettingsFrame { return p.stack[len(p.stack)-1] }

// Depth is the number of open menu levels, 1 for the top menu.
func (p *Settings) Depth() int { return len(p.stack) }

// Account returns the index of the account chosen in the accounts level,
// or -1 when the menu has not drilled into an account.
func (p *Settings) Account() int {
	for _, fr := range p.stack {
		if fr.Level == SettingsAccounts && fr.Cursor > 0 {
			return fr.Cursor - 1
		}
	}
	return -1
}

// Items lists the labels of the current level.
func (p *Settings) Items(env Env) []string {
	switch p.Frame().Level {
	case SettingsAccounts:
		return append([]string{settingsAddAccount}, env.Accounts...)
	case SettingsAccountActions:
		return settingsActionItems
	case SettingsVerify:
		return settingsVerifyItems
	case SettingsTheme:
		return env.Themes
	case SettingsSort:
		return env.SortModes
	default:
		return settingsTopItems
	}
}

func (p *Settings) push(level SettingsLevel, cursor int) {
	p.stack = append(p.stack, SettingsFrame{Level: level, Cursor: cursor})
}

func (p *Settings) pop() bool {
	if len(p.stack) <= 1 {
		return false
	}
	p.stack = p.stack[:len(p.stack)-1]
	return true
}

func (p *Settings) move(delta, n int) {
	fr := &p.stack[len(p.stack)-1]
	fr.Cursor = clamp(fr.Cursor+delta, n)
}

// ProfileForm fields.
const (
	ProfileDisplayName = iota
	ProfileAvatarURL
	ProfileAvatarPath
	profileFields
)

type ProfileForm struct {
	Form
	AccountID   string
	CurrentName string
	DisplayName Field
	AvatarURL   Field
	AvatarPath  Field
	Focus       int
}

func (*ProfileForm) kind() Overlay { return OverlayProfile }
func (p *ProfileForm) form() *Form { return &p.Form }
func (p *ProfileForm) field() *Field {
	switch p.Focus {
	case ProfileDisplayName:
		return &p.DisplayName
	case ProfileAvatarURL:
		return &p.AvatarURL
	default:
		return &p.AvatarPath
	}
}

// CreatorForm fields.
const (
	CreatorAccount = iota
	CreatorName
	CreatorTopic
	CreatorPublic
	CreatorEncrypted
	CreatorFederated
	CreatorInvites
	creatorFields
)

type CreatorForm struct {
	Form
	Account   int
	Name      Field
	Topic     Field
	Public    bool
	Encrypted bool
	Federated bool
	Invites   Field
	Focus     int
}

func (*CreatorForm) kind() Overlay { return OverlayRoomCreator }
func (p *CreatorForm) form() *Form { return &p.Form }

func (p *CreatorForm) field() *Field {
	switch p.Focus {
	case CreatorName:
		return &p.Name
	case CreatorTopic:
		return &p.Topic
	case CreatorInvites:
		return &p.Invites
	default:
		return nil
	}
}

// Request builds the create-room request from the form.
func (p *CreatorForm) Request() backend.CreateRoomRequest {
	var invites []string
	for _, part := range strings.Split(p.Invites.String(), ",") {
		if part = strings.TrimSpace(part); part != "" {
			invites = append(invites, part)
		}
	}
	return backend.CreateRoomRequest{
		Name:      strings.TrimSpace(p.Name.String()),
		Topic:     strings.TrimSpace(p.Topic.String()),
		Public:    p.Public,
		Encrypted: p.Encrypted,
		Federated: p.Federated,
		Invites:   invites,
	}
}

// EditorForm fields.
const (
	EditorName = iota
	EditorTopic
	EditorInvite
	EditorLeave
	EditorDelete
	editorFields
)

type EditorForm struct {
	Form
	RoomID    string
	AccountID string
	Name      Field
	Topic     Field
	Invite    Field
	Focus     int
	Confirm   bool
}

func (*EditorForm) kind() Overlay { return OverlayRoomEditor }
func (p *EditorForm) form() *Form { return &p.Form }

func (p *EditorForm) field() *Field {
	switch p.Focus {
	case EditorName:
		return &p.Name
	case EditorTopic:
		return &p.Topic
	case EditorInvite:
		return &p.Invite
	default:
		return nil
	}
}

type RecoveryForm struct {
	Form
	AccountID string
	Key       Field
}

func (*RecoveryForm) kind() Overlay { return OverlayRecovery }
func (p *RecoveryForm) form() *Form { return &p.Form }

// MessageMenu is the action list for the selected message. Edit and Delete
// are offered only for the user's own messages.
type MessageMenu struct {
	Form
	RoomID   string
	EventID  string
	Own      bool
	Cursor   int
	Editing  bool
	EditText Field
}

func (*MessageMenu) kind() Overlay { return OverlayMessageAction }
func (p *MessageMenu) form() *Form { return &p.Form }

// Items lists the available actions.
func (p *MessageMenu) Items() []string {
	if p.Own {
		return []string{"Reply", "React", "Edit", "Delete"}
	}
	return []string{"Reply", "React"}
}

// VerifyView has no fields of its own; it renders the active verification
// session.
type VerifyView struct {
	Form
	AccountID string
}

func (*VerifyView) kind() Overlay { return OverlayVerification }
func (p *VerifyView) form() *Form { return &p.Form }

type EmojiPicker struct {
	Form
	RoomID  string
	EventID string
	Cursor  int
}

func (*EmojiPicker) kind() Overlay { return OverlayEmojiPicker }
func (p *EmojiPicker) form() *Form { return &p.Form }

// RoomInfoView shows details fetched for the active room. Details is nil
// until the fetch completes.
type RoomInfoView struct {
	Form
	RoomID  string
	Details *backend.RoomDetails
}

func (*RoomInfoView) kind() Overlay { return OverlayRoomInfo }
func (p *RoomInfoView) form() *Form { return &p.Form }

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
