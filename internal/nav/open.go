package nav

import "github.com/matheus3301/matrixtui/internal/backend"

// OpenLogin shows a fresh login form.
func (s *State) OpenLogin() uint64 {
	return s.open(&LoginForm{Homeserver: NewField(DefaultHomeserver)})
}

func (s *State) OpenHelp() uint64 {
	return s.open(&HelpView{})
}

// OpenSwitcher shows the room switcher with an empty query.
func (s *State) OpenSwitcher(labels []string) uint64 {
	return s.open(&Switcher{Matches: Filter("", labels)})
}

// OpenSettings shows the top-level settings menu.
func (s *State) OpenSettings() uint64 {
	return s.open(&Settings{stack: []SettingsFrame{{Level: SettingsTop}}})
}

// OpenProfile shows the profile editor for accountID in a busy state until
// the current profile has been fetched.
func (s *State) OpenProfile(accountID string) uint64 {
	return s.open(&ProfileForm{Form: Form{Busy: true}, AccountID: accountID})
}

// ProfileLoaded fills the profile editor with the fetched display name.
func (s *State) ProfileLoaded(gen uint64, name string) bool {
	p := s.Profile()
	if p == nil || gen != s.gen {
		return false
	}
	p.Busy = false
	p.CurrentName = name
	p.DisplayName.Set(name)
	return true
}

// OpenCreator shows the room creator preset to account index.
func (s *State) OpenCreator(account int) uint64 {
	return s.open(&CreatorForm{Account: account, Encrypted: true, Federated: true})
}

// OpenEditor shows the room editor for an existing room.
func (s *State) OpenEditor(roomID, accountID, name, topic string) uint64 {
	return s.open(&EditorForm{
		RoomID:    roomID,
		AccountID: accountID,
		Name:      NewField(name),
		Topic:     NewField(topic),
	})
}

func (s *State) OpenRecovery(accountID string) uint64 {
	return s.open(&RecoveryForm{AccountID: accountID})
}

// OpenMessageActions shows the action menu for one confirmed message.
func (s *State) OpenMessageActions(roomID, eventID, body string, own bool) uint64 {
	return s.open(&MessageMenu{RoomID: roomID, EventID: eventID, Own: own, EditText: NewField(body)})
}

// OpenVerification shows the verification overlay for accountID.
func (s *State) OpenVerification(accountID string) uint64 {
	return s.open(&VerifyView{AccountID: accountID})
}

func (s *State) OpenEmojiPicker(roomID, eventID string) uint64 {
	return s.open(&EmojiPicker{RoomID: roomID, EventID: eventID})
}

// OpenRoomInfo shows the info overlay while details for roomID load.
func (s *State) OpenRoomInfo(roomID string) uint64 {
	return s.open(&RoomInfoView{Form: Form{Busy: true}, RoomID: roomID})
}

// RoomInfoLoaded attaches fetched details to the info overlay.
func (s *State) RoomInfoLoaded(gen uint64, d backend.RoomDetails) bool {
	p := s.RoomInfo()
	if p == nil || gen != s.gen {
		return false
	}
	p.Busy = false
	p.Details = &d
	return true
}
