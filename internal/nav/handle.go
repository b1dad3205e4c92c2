package nav

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/matrixtui/internal/verify"
)

// Validation messages shown in overlay error fields.
const (
	ErrRoomNameRequired = "Room name is required"
	ErrNameEmpty        = "Name cannot be empty"
	ErrInviteEmpty      = "Enter a user ID"
	ErrMessageEmpty     = "Message cannot be empty"
	ErrNoAccount        = "No account available"
)

// Env is the read-only view of coordinator state the key handlers need.
type Env struct {
	Accounts        []string
	ActiveAccount   int
	Rooms           []string
	SelectedRoom    int
	FavoritesCount  int
	ActiveRoomID    string
	MessageSelected bool
	Themes          []string
	Theme           int
	SortModes       []string
	Sort            int
	Verification    *verify.Session
}

// HandleKey routes one key press. Navigation-only keys mutate s directly;
// anything that needs coordinator state comes back as a Command. A nil
// Command means the key was consumed or ignored.
func (s *State) HandleKey(ev *tcell.EventKey, env Env) Command {
	s.AccountCursor = clamp(s.AccountCursor, len(env.Accounts))

	switch {
	case keyQuit.Matches(ev):
		return Quit{}
	case keySwitcher.Matches(ev):
		if f := s.activeForm(); f != nil && f.Busy {
			return nil
		}
		s.OpenSwitcher(env.Rooms)
		return nil
	case keyRoomInfo.Matches(ev):
		if s.current != nil || env.ActiveRoomID == "" {
			return nil
		}
		gen := s.OpenRoomInfo(env.ActiveRoomID)
		return LoadRoomInfo{Gen: gen, RoomID: env.ActiveRoomID}
	}

	if s.current == nil && s.Focus != FocusInput && ev.Key() == tcell.KeyRune {
		switch {
		case keySettings.Matches(ev):
			s.OpenSettings()
			return nil
		case keyCreate.Matches(ev) && len(env.Accounts) > 0:
			s.OpenCreator(clamp(env.ActiveAccount, len(env.Accounts)))
			return nil
		case keyEdit.Matches(ev) && env.ActiveRoomID != "" && s.Focus != FocusChat:
			return OpenRoomEditor{}
		}
	}

	if s.current != nil {
		if s.current.form().Busy {
			if ev.Key() == tcell.KeyEscape {
				return s.escapeBusy()
			}
			return nil
		}
		return s.handleOverlay(ev, env)
	}

	switch s.Focus {
	case FocusAccounts:
		return s.accountsKey(ev, env)
	case FocusRooms:
		return s.roomsKey(ev, env)
	case FocusChat:
		return s.chatKey(ev, env)
	default:
		return s.inputKey(ev, env)
	}
}

func (s *State) activeForm() *Form {
	if s.current == nil {
		return nil
	}
	return s.current.form()
}

// escapeBusy abandons an overlay with a task in flight. The task's result
// will no longer match the overlay generation.
func (s *State) escapeBusy() Command {
	_, verifying := s.current.(*VerifyView)
	s.Close()
	if verifying {
		return CancelVerification{}
	}
	return nil
}

func (s *State) handleOverlay(ev *tcell.EventKey, env Env) Command {
	switch p := s.current.(type) {
	case *LoginForm:
		return s.loginKey(p, ev)
	case *HelpView:
		s.helpKey(p, ev)
	case *Switcher:
		return s.switcherKey(p, ev, env)
	case *Settings:
		return s.settingsKey(p, ev, env)
	case *ProfileForm:
		return s.profileKey(p, ev)
	case *CreatorForm:
		return s.creatorKey(p, ev, env)
	case *EditorForm:
		return s.editorKey(p, ev)
	case *RecoveryForm:
		return s.recoveryKey(p, ev)
	case *MessageMenu:
		return s.messageMenuKey(p, ev)
	case *VerifyView:
		return s.verificationKey(ev, env)
	case *EmojiPicker:
		return s.emojiKey(p, ev)
	case *RoomInfoView:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyEnter, ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			s.Close()
		}
	}
	return nil
}

func (s *State) accountsKey(ev *tcell.EventKey, env Env) Command {
	switch ev.Key() {
	case tcell.KeyUp:
		s.AccountCursor = clamp(s.AccountCursor-1, len(env.Accounts))
	case tcell.KeyDown:
		s.AccountCursor = clamp(s.AccountCursor+1, len(env.Accounts))
	case tcell.KeyTab, tcell.KeyRight:
		s.Focus = FocusRooms
	case tcell.KeyBacktab:
		s.Focus = FocusInput
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a':
			s.OpenLogin()
		case '?':
			s.OpenHelp()
		}
	}
	return nil
}

func (s *State) roomsKey(ev *tcell.EventKey, env Env) Command {
	switch ev.Key() {
	case tcell.KeyUp, tcell.KeyDown:
		delta := 1
		if ev.Key() == tcell.KeyUp {
			delta = -1
		}
		if ev.Modifiers()&tcell.ModShift != 0 {
			if env.SelectedRoom >= env.FavoritesCount {
				return nil
			}
			to := env.SelectedRoom + delta
			if to < 0 || to >= env.FavoritesCount {
				return nil
			}
			return MoveFavorite{Delta: delta}
		}
		return MoveRoom{Delta: delta}
	case tcell.KeyEnter:
		if len(env.Rooms) == 0 {
			return nil
		}
		return OpenSelectedRoom{}
	case tcell.KeyTab, tcell.KeyRight:
		s.Focus = FocusChat
	case tcell.KeyBacktab, tcell.KeyLeft:
		s.Focus = FocusAccounts
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'f':
			if len(env.Rooms) > 0 {
				return ToggleFavorite{}
			}
		case 'a':
			s.OpenLogin()
		case '?':
			s.OpenHelp()
		}
	}
	return nil
}

func (s *State) chatKey(ev *tcell.EventKey, env Env) Command {
	switch ev.Key() {
	case tcell.KeyUp:
		return SelectPrevMessage{}
	case tcell.KeyDown:
		return SelectNextMessage{}
	case tcell.KeyHome:
		return SelectFirstMessage{}
	case tcell.KeyEnd:
		return SelectLastMessage{}
	case tcell.KeyEnter:
		if env.MessageSelected {
			return OpenMessageActions{}
		}
	case tcell.KeyEscape:
		if env.MessageSelected {
			return ClearSelection{}
		}
		s.Focus = FocusRooms
	case tcell.KeyTab:
		s.Focus = FocusInput
	case tcell.KeyBacktab, tcell.KeyLeft:
		s.Focus = FocusRooms
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'r':
			return StartReply{}
		case 'e':
			return PickReaction{}
		case '?':
			s.OpenHelp()
		}
	}
	return nil
}

func (s *State) inputKey(ev *tcell.EventKey, env Env) Command {
	c := &s.Composer
	switch ev.Key() {
	case tcell.KeyEnter:
		body := strings.TrimSpace(c.Input.String())
		if body == "" || env.ActiveRoomID == "" {
			return nil
		}
		cmd := SendMessage{Body: body, Reply: c.ReplyTo}
		s.ResetComposer()
		return cmd
	case tcell.KeyEscape:
		c.ReplyTo = nil
		s.Focus = FocusChat
		return s.stopTyping()
	case tcell.KeyTab:
		s.Focus = FocusAccounts
		return nil
	case tcell.KeyBacktab:
		s.Focus = FocusChat
		return nil
	}
	if !c.Input.Edit(ev) {
		return nil
	}
	if env.ActiveRoomID == "" {
		return nil
	}
	if c.Input.Empty() {
		return s.stopTyping()
	}
	if !c.typing {
		c.typing = true
		return Typing{Active: true}
	}
	return nil
}

func (s *State) stopTyping() Command {
	if !s.Composer.typing {
		return nil
	}
	s.Composer.typing = false
	return Typing{Active: false}
}

// cycle moves a form focus index forward or backward with wrap-around.
func cycle(ev *tcell.EventKey, focus, n int) (int, bool) {
	switch ev.Key() {
	case tcell.KeyTab, tcell.KeyDown:
		return (focus + 1) % n, true
	case tcell.KeyBacktab, tcell.KeyUp:
		return (focus + n - 1) % n, true
	}
	return focus, false
}

func (s *State) loginKey(p *LoginForm, ev *tcell.EventKey) Command {
	if f, ok := cycle(ev, p.Focus, loginFields); ok {
		p.Focus = f
		return nil
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
	case tcell.KeyEnter:
		if p.Focus != LoginPassword && (p.Username.Empty() || p.Password.Empty()) {
			p.Focus = (p.Focus + 1) % loginFields
			return nil
		}
		p.Busy = true
		p.Err = ""
		return SubmitLogin{
			Gen:        s.gen,
			Homeserver: strings.TrimSpace(p.Homeserver.String()),
			Username:   strings.TrimSpace(p.Username.String()),
			Password:   p.Password.String(),
		}
	default:
		p.field().Edit(ev)
	}
	return nil
}

func (s *State) helpKey(p *HelpView, ev *tcell.EventKey) {
	switch {
	case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyRune && ev.Rune() == '?':
		s.Close()
	case ev.Key() == tcell.KeyUp, ev.Key() == tcell.KeyRune && ev.Rune() == 'k':
		if p.Scroll > 0 {
			p.Scroll--
		}
	case ev.Key() == tcell.KeyDown, ev.Key() == tcell.KeyRune && ev.Rune() == 'j':
		if p.Scroll < len(HelpLines())-1 {
			p.Scroll++
		}
	}
}

func (s *State) switcherKey(p *Switcher, ev *tcell.EventKey, env Env) Command {
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
	case tcell.KeyEnter:
		p.Matches = Filter(p.Query.String(), env.Rooms)
		if p.Selected >= len(p.Matches) {
			return nil
		}
		idx := p.Matches[p.Selected]
		s.Close()
		return OpenRoom{Index: idx}
	case tcell.KeyUp:
		p.Selected = clamp(p.Selected-1, len(p.Matches))
	case tcell.KeyDown:
		p.Selected = clamp(p.Selected+1, len(p.Matches))
	default:
		if p.Query.Edit(ev) {
			p.Matches = Filter(p.Query.String(), env.Rooms)
			p.Selected = 0
		}
	}
	return nil
}

func (s *State) settingsKey(p *Settings, ev *tcell.EventKey, env Env) Command {
	items := p.Items(env)
	p.move(0, len(items))
	switch ev.Key() {
	case tcell.KeyEscape:
		if !p.pop() {
			s.Close()
		}
		return nil
	case tcell.KeyUp:
		p.move(-1, len(items))
		return nil
	case tcell.KeyDown:
		p.move(1, len(items))
		return nil
	case tcell.KeyEnter:
	default:
		return nil
	}

	fr := p.Frame()
	if fr.Cursor >= len(items) {
		return nil
	}
	account := ""
	if i := p.Account(); i >= 0 && i < len(env.Accounts) {
		account = env.Accounts[i]
	}

	switch fr.Level {
	case SettingsTop:
		switch fr.Cursor {
		case 0:
			p.push(SettingsAccounts, 0)
		case 1:
			p.push(SettingsTheme, clamp(env.Theme, len(env.Themes)))
		case 2:
			p.push(SettingsSort, clamp(env.Sort, len(env.SortModes)))
		case 3:
			s.Close()
			return ClearCache{}
		}
	case SettingsAccounts:
		if fr.Cursor == 0 {
			s.OpenLogin()
			return nil
		}
		p.push(SettingsAccountActions, 0)
	case SettingsAccountActions:
		if account == "" {
			p.pop()
			return nil
		}
		switch fr.Cursor {
		case 0:
			p.pop()
			return ReconnectAccount{AccountID: account}
		case 1:
			p.pop()
			return RemoveAccount{AccountID: account}
		case 2:
			gen := s.OpenProfile(account)
			return LoadProfile{Gen: gen, AccountID: account}
		case 3:
			p.push(SettingsVerify, 0)
		}
	case SettingsVerify:
		if account == "" {
			return nil
		}
		if fr.Cursor == 0 {
			s.OpenRecovery(account)
			return nil
		}
		gen := s.OpenVerification(account)
		s.Verification().Busy = true
		return StartVerification{Gen: gen, AccountID: account}
	case SettingsTheme:
		p.pop()
		return SetTheme{Name: items[fr.Cursor]}
	case SettingsSort:
		p.pop()
		return SetSort{Index: fr.Cursor}
	}
	return nil
}

func (s *State) profileKey(p *ProfileForm, ev *tcell.EventKey) Command {
	if ev.Key() == tcell.KeyTab || ev.Key() == tcell.KeyBacktab {
		p.Focus, _ = cycle(ev, p.Focus, profileFields)
		return nil
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
	case tcell.KeyEnter:
		value := strings.TrimSpace(p.field().String())
		if value == "" {
			return nil
		}
		p.Busy = true
		p.Err = ""
		return UpdateProfile{Gen: s.gen, AccountID: p.AccountID, Field: p.Focus, Value: value}
	default:
		p.field().Edit(ev)
	}
	return nil
}

func (s *State) creatorKey(p *CreatorForm, ev *tcell.EventKey, env Env) Command {
	n := len(env.Accounts)
	cycleAccount := func(delta int) {
		if n > 1 {
			p.Account = (p.Account + delta + n) % n
		}
	}
	toggle := func() bool {
		switch p.Focus {
		case CreatorAccount:
			cycleAccount(1)
		case CreatorPublic:
			p.Public = !p.Public
		case CreatorEncrypted:
			p.Encrypted = !p.Encrypted
		case CreatorFederated:
			p.Federated = !p.Federated
		default:
			return false
		}
		return true
	}

	if ev.Key() == tcell.KeyTab || ev.Key() == tcell.KeyBacktab {
		p.Focus, _ = cycle(ev, p.Focus, creatorFields)
		return nil
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
		return nil
	case tcell.KeyEnter:
		if toggle() {
			return nil
		}
		if strings.TrimSpace(p.Name.String()) == "" {
			p.Err = ErrRoomNameRequired
			return nil
		}
		if p.Account < 0 || p.Account >= n {
			p.Err = ErrNoAccount
			return nil
		}
		p.Busy = true
		p.Err = ""
		return CreateRoom{Gen: s.gen, AccountID: env.Accounts[p.Account], Request: p.Request()}
	case tcell.KeyLeft, tcell.KeyRight:
		if p.Focus == CreatorAccount {
			if ev.Key() == tcell.KeyLeft {
				cycleAccount(-1)
			} else {
				cycleAccount(1)
			}
			return nil
		}
	case tcell.KeyRune:
		if ev.Rune() == ' ' && toggle() {
			return nil
		}
	}
	if f := p.field(); f != nil {
		f.Edit(ev)
	}
	return nil
}

func (s *State) editorKey(p *EditorForm, ev *tcell.EventKey) Command {
	if ev.Key() == tcell.KeyTab || ev.Key() == tcell.KeyBacktab {
		p.Focus, _ = cycle(ev, p.Focus, editorFields)
		p.Confirm = false
		return nil
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		if p.Confirm {
			p.Confirm = false
			return nil
		}
		s.Close()
		return nil
	case tcell.KeyEnter:
		return s.submitEditor(p)
	}
	p.Confirm = false
	if f := p.field(); f != nil {
		f.Edit(ev)
	}
	return nil
}

func (s *State) submitEditor(p *EditorForm) Command {
	switch p.Focus {
	case EditorName, EditorTopic, EditorInvite:
		value := strings.TrimSpace(p.field().String())
		switch {
		case p.Focus == EditorName && value == "":
			p.Err = ErrNameEmpty
			return nil
		case p.Focus == EditorInvite && value == "":
			p.Err = ErrInviteEmpty
			return nil
		}
		p.Busy = true
		p.Err = ""
		return EditRoom{Gen: s.gen, RoomID: p.RoomID, AccountID: p.AccountID, Field: p.Focus, Value: value}
	case EditorLeave, EditorDelete:
		if !p.Confirm {
			p.Confirm = true
			return nil
		}
		p.Confirm = false
		p.Busy = true
		p.Err = ""
		if p.Focus == EditorLeave {
			return LeaveRoom{Gen: s.gen, RoomID: p.RoomID, AccountID: p.AccountID}
		}
		return DeleteRoom{Gen: s.gen, RoomID: p.RoomID, AccountID: p.AccountID}
	}
	return nil
}

func (s *State) recoveryKey(p *RecoveryForm, ev *tcell.EventKey) Command {
	switch ev.Key() {
	case tcell.KeyEscape:
		s.OpenSettings()
	case tcell.KeyEnter:
		key := strings.TrimSpace(p.Key.String())
		if key == "" {
			return nil
		}
		p.Busy = true
		p.Err = ""
		return RecoverKeys{Gen: s.gen, AccountID: p.AccountID, Key: key}
	default:
		p.Key.Edit(ev)
	}
	return nil
}

func (s *State) messageMenuKey(p *MessageMenu, ev *tcell.EventKey) Command {
	if p.Editing {
		switch ev.Key() {
		case tcell.KeyEscape:
			p.Editing = false
			p.Err = ""
		case tcell.KeyEnter:
			body := strings.TrimSpace(p.EditText.String())
			if body == "" {
				p.Err = ErrMessageEmpty
				return nil
			}
			p.Busy = true
			p.Err = ""
			return EditMessage{Gen: s.gen, RoomID: p.RoomID, EventID: p.EventID, Body: body}
		default:
			p.EditText.Edit(ev)
		}
		return nil
	}

	items := p.Items()
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
	case tcell.KeyUp:
		p.Cursor = clamp(p.Cursor-1, len(items))
	case tcell.KeyDown:
		p.Cursor = clamp(p.Cursor+1, len(items))
	case tcell.KeyEnter:
		switch items[p.Cursor] {
		case "Reply":
			s.Close()
			return StartReply{}
		case "React":
			s.OpenEmojiPicker(p.RoomID, p.EventID)
		case "Edit":
			p.Editing = true
			p.Err = ""
		case "Delete":
			p.Busy = true
			p.Err = ""
			return DeleteMessage{Gen: s.gen, RoomID: p.RoomID, EventID: p.EventID}
		}
	}
	return nil
}

func (s *State) verificationKey(ev *tcell.EventKey, env Env) Command {
	yes := ev.Key() == tcell.KeyEnter || ev.Key() == tcell.KeyRune && ev.Rune() == 'y'
	no := ev.Key() == tcell.KeyRune && ev.Rune() == 'n'
	esc := ev.Key() == tcell.KeyEscape

	sess := env.Verification
	if sess == nil || sess.Terminal() {
		if esc || ev.Key() == tcell.KeyEnter {
			s.Close()
			return DismissVerification{}
		}
		return nil
	}
	if sess.Busy() {
		if esc {
			s.Close()
			return CancelVerification{}
		}
		return nil
	}

	switch sess.State {
	case verify.Incoming:
		switch {
		case yes:
			return AcceptVerification{}
		case no, esc:
			s.Close()
			return CancelVerification{}
		}
	case verify.KeysExchanged:
		switch {
		case yes:
			return ConfirmVerification{}
		case no:
			return RejectVerification{}
		case esc:
			s.Close()
			return CancelVerification{}
		}
	default:
		if esc {
			s.Close()
			return CancelVerification{}
		}
	}
	return nil
}

func (s *State) emojiKey(p *EmojiPicker, ev *tcell.EventKey) Command {
	switch ev.Key() {
	case tcell.KeyEscape:
		s.Close()
	case tcell.KeyLeft:
		p.Cursor = clamp(p.Cursor-1, len(Reactions))
	case tcell.KeyRight:
		p.Cursor = clamp(p.Cursor+1, len(Reactions))
	case tcell.KeyEnter:
		s.Close()
		return SendReaction{RoomID: p.RoomID, EventID: p.EventID, Key: Reactions[p.Cursor]}
	}
	return nil
}
