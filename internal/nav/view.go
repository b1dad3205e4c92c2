package nav

import (
	"slices"

	"github.com/matheus3301/matrixtui/internal/chat"
)

// View is a copy of the navigation state that shares no memory with it.
// Payload holds a copy of the active overlay's fields (*LoginForm,
// *Settings, ...) and is nil when no overlay is open.
type View struct {
	Focus         Focus
	AccountCursor int
	Input         Field
	ReplyTo       *chat.ReplyRef
	Overlay       Overlay
	Payload       any
	// Items are the entries of the settings level or message menu on screen.
	Items []string
}

func (f Field) clone() Field {
	f.text = slices.Clone(f.text)
	return f
}

// View copies the state for rendering.
func (s *State) View(env Env) View {
	v := View{
		Focus:         s.Focus,
		AccountCursor: s.AccountCursor,
		Input:         s.Composer.Input.clone(),
		Overlay:       s.Overlay(),
	}
	if r := s.Composer.ReplyTo; r != nil {
		ref := *r
		v.ReplyTo = &ref
	}

	switch p := s.current.(type) {
	case *LoginForm:
		c := *p
		c.Homeserver, c.Username, c.Password = p.Homeserver.clone(), p.Username.clone(), p.Password.clone()
		v.Payload = &c
	case *HelpView:
		c := *p
		v.Payload = &c
	case *Switcher:
		c := *p
		c.Query = p.Query.clone()
		c.Matches = slices.Clone(p.Matches)
		v.Payload = &c
	case *Settings:
		c := *p
		c.stack = slices.Clone(p.stack)
		v.Payload = &c
		v.Items = slices.Clone(p.Items(env))
	case *ProfileForm:
		c := *p
		c.DisplayName, c.AvatarURL, c.AvatarPath = p.DisplayName.clone(), p.AvatarURL.clone(), p.AvatarPath.clone()
		v.Payload = &c
	case *CreatorForm:
		c := *p
		c.Name, c.Topic, c.Invites = p.Name.clone(), p.Topic.clone(), p.Invites.clone()
		v.Payload = &c
	case *EditorForm:
		c := *p
		c.Name, c.Topic, c.Invite = p.Name.clone(), p.Topic.clone(), p.Invite.clone()
		v.Payload = &c
	case *RecoveryForm:
		c := *p
		c.Key = p.Key.clone()
		v.Payload = &c
	case *MessageMenu:
		c := *p
		c.EditText = p.EditText.clone()
		v.Payload = &c
		v.Items = p.Items()
	case *VerifyView:
		c := *p
		v.Payload = &c
	case *EmojiPicker:
		c := *p
		v.Payload = &c
	case *RoomInfoView:
		c := *p
		if p.Details != nil {
			d := *p.Details
			c.Details = &d
		}
		v.Payload = &c
	}
	return v
}
