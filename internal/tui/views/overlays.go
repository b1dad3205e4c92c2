package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
	"github.com/matheus3301/matrixtui/internal/verify"
)

// Overlay returns the title and tagged body of the open overlay. ok is
// false when none is open.
func Overlay(theme *ui.Theme, snap *app.Snapshot) (title, body string, ok bool) {
	v := &snap.Nav
	o := overlayText{theme: theme}
	switch p := v.Payload.(type) {
	case *nav.LoginForm:
		title = "Add Account"
		o.field("Homeserver", &p.Homeserver, p.Focus == nav.LoginHomeserver, false)
		o.field("Username", &p.Username, p.Focus == nav.LoginUsername, false)
		o.field("Password", &p.Password, p.Focus == nav.LoginPassword, true)
		o.form(p.Form, "Logging in…")
	case *nav.HelpView:
		title = "Help"
		lines := nav.HelpLines()
		for _, l := range lines[min(p.Scroll, len(lines)):] {
			o.line(ui.Text(l))
		}
	case *nav.Switcher:
		title = "Switch Room"
		o.field("Room", &p.Query, true, false)
		o.line("")
		for i, idx := range p.Matches {
			if idx < 0 || idx >= len(snap.Rooms) {
				continue
			}
			o.item(snap.Rooms[idx].Label(), i == p.Selected)
		}
		if len(p.Matches) == 0 {
			o.muted("no matching rooms")
		}
	case *nav.Settings:
		title = settingsTitle(p)
		cursor := p.Frame().Cursor
		for i, item := range v.Items {
			o.item(item, i == cursor)
		}
		o.form(p.Form, "Working…")
	case *nav.ProfileForm:
		title = "Edit Profile"
		o.muted(p.AccountID)
		if p.CurrentName != "" {
			o.muted("currently " + p.CurrentName)
		}
		o.field("Display name", &p.DisplayName, p.Focus == nav.ProfileDisplayName, false)
		o.field("Avatar URL", &p.AvatarURL, p.Focus == nav.ProfileAvatarURL, false)
		o.field("Avatar file", &p.AvatarPath, p.Focus == nav.ProfileAvatarPath, false)
		o.form(p.Form, "Saving…")
	case *nav.CreatorForm:
		title = "New Room"
		account := ""
		if p.Account >= 0 && p.Account < len(snap.Accounts) {
			account = snap.Accounts[p.Account].ID
		}
		o.choice("Account", account, p.Focus == nav.CreatorAccount)
		o.field("Name", &p.Name, p.Focus == nav.CreatorName, false)
		o.field("Topic", &p.Topic, p.Focus == nav.CreatorTopic, false)
		o.toggle("Public", p.Public, p.Focus == nav.CreatorPublic)
		o.toggle("Encrypted", p.Encrypted, p.Focus == nav.CreatorEncrypted)
		o.toggle("Federated", p.Federated, p.Focus == nav.CreatorFederated)
		o.field("Invite", &p.Invites, p.Focus == nav.CreatorInvites, false)
		o.form(p.Form, "Creating…")
	case *nav.EditorForm:
		title = "Edit Room"
		o.field("Name", &p.Name, p.Focus == nav.EditorName, false)
		o.field("Topic", &p.Topic, p.Focus == nav.EditorTopic, false)
		o.field("Invite", &p.Invite, p.Focus == nav.EditorInvite, false)
		o.line("")
		o.item(confirmLabel("Leave room", p.Confirm && p.Focus == nav.EditorLeave), p.Focus == nav.EditorLeave)
		o.item(confirmLabel("Leave and forget", p.Confirm && p.Focus == nav.EditorDelete), p.Focus == nav.EditorDelete)
		o.form(p.Form, "Saving…")
	case *nav.RecoveryForm:
		title = "Recovery Key"
		o.muted(p.AccountID)
		o.field("Key", &p.Key, true, true)
		o.form(p.Form, "Verifying…")
	case *nav.MessageMenu:
		title = "Message"
		if p.Editing {
			o.field("Edit", &p.EditText, true, false)
		} else {
			for i, item := range v.Items {
				o.item(item, i == p.Cursor)
			}
		}
		o.form(p.Form, "Working…")
	case *nav.VerifyView:
		title = "Verify Session"
		o.verification(snap.Verification)
	case *nav.EmojiPicker:
		title = "React"
		var b strings.Builder
		for i, r := range nav.Reactions {
			if i == p.Cursor {
				fmt.Fprintf(&b, "[::r] %s [::-]", ui.Sanitize(r))
			} else {
				fmt.Fprintf(&b, " %s ", ui.Sanitize(r))
			}
		}
		o.line(b.String())
	case *nav.RoomInfoView:
		title = "Room Info"
		o.roomInfo(p, snap)
	default:
		return "", "", false
	}
	return title, o.String(), true
}

type overlayText struct {
	strings.Builder
	theme *ui.Theme
}

func (o *overlayText) line(s string) {
	o.WriteString(s)
	o.WriteString("\n")
}

func (o *overlayText) muted(s string) {
	o.line(fmt.Sprintf("[%s]%s[-]", ui.Tag(o.theme.MutedColor), ui.Text(s)))
}

func (o *overlayText) label(name string, focused bool) string {
	color := o.theme.FgColor
	if focused {
		color = o.theme.MenuKeyColor
	}
	return fmt.Sprintf("[%s::b]%-13s[-:-:-]", ui.Tag(color), name+":")
}

func (o *overlayText) field(name string, f *nav.Field, focused, secret bool) {
	o.line(o.label(name, focused) + " " + FieldText(f, focused, secret))
}

func (o *overlayText) choice(name, value string, focused bool) {
	o.line(o.label(name, focused) + " ‹ " + ui.Text(value) + " ›")
}

func (o *overlayText) toggle(name string, on, focused bool) {
	box := "[ ]"
	if on {
		box = "[x]"
	}
	o.line(o.label(name, focused) + " " + ui.Text(box))
}

func (o *overlayText) item(s string, selected bool) {
	if selected {
		o.line(fmt.Sprintf("[%s:%s] %s [-:-]", ui.Tag(o.theme.CursorFg), ui.Tag(o.theme.CursorBg), ui.Text(s)))
		return
	}
	o.line(" " + ui.Text(s))
}

func (o *overlayText) form(f nav.Form, busy string) {
	if f.Busy {
		o.line("")
		o.muted(busy)
	}
	if f.Err != "" {
		o.line("")
		o.line(fmt.Sprintf("[%s]%s[-]", ui.Tag(o.theme.FlashErrColor), ui.Text(f.Err)))
	}
}

func (o *overlayText) verification(v *app.VerificationView) {
	if v == nil {
		o.muted("No verification in progress.")
		return
	}
	if v.Peer != "" {
		o.muted(v.Peer)
	}
	switch v.State {
	case verify.Requested:
		o.line("Waiting for the other device to accept…")
	case verify.Incoming:
		o.line("Another device wants to verify this session.")
		o.line("Accept? (y/n)")
	case verify.Ready, verify.SasStarted:
		o.line("Exchanging keys…")
	case verify.KeysExchanged:
		o.line("Do these emoji match the other device?")
		o.line("")
		var sym, lbl []string
		for _, e := range v.Emojis {
			sym = append(sym, fmt.Sprintf("%-8s", ui.Sanitize(e.Symbol)))
			lbl = append(lbl, fmt.Sprintf("%-8s", ui.Text(e.Label)))
		}
		o.line(strings.Join(sym, ""))
		o.line(strings.Join(lbl, ""))
		o.line("")
		o.line("Match? (y/n)")
	case verify.Confirmed:
		o.line("Waiting for the other device to confirm…")
	case verify.Done:
		o.line(fmt.Sprintf("[%s]Session verified.[-]", ui.Tag(o.theme.SenderColor)))
	case verify.Cancelled:
		o.line(fmt.Sprintf("[%s]Verification cancelled.[-]", ui.Tag(o.theme.FlashErrColor)))
		if v.Reason != "" {
			o.muted(v.Reason)
		}
	}
	if v.Busy {
		o.muted("Working…")
	}
}

func (o *overlayText) roomInfo(p *nav.RoomInfoView, snap *app.Snapshot) {
	d := p.Details
	if d == nil {
		if p.Err != "" {
			o.form(p.Form, "")
			return
		}
		o.muted("Loading…")
		return
	}
	kind := "Group"
	if d.IsDM {
		kind = "Direct message"
	}
	o.line(o.label("Name", false) + " " + ui.Text(d.Name))
	if d.Topic != "" {
		o.line(o.label("Topic", false) + " " + ui.Text(d.Topic))
	}
	if d.Alias != "" {
		o.line(o.label("Alias", false) + " " + ui.Text(d.Alias))
	}
	o.line(o.label("ID", false) + " " + ui.Text(d.ID))
	o.line(o.label("Type", false) + " " + kind)
	o.line(o.label("Members", false) + " " + humanize.Comma(int64(d.Members)))
	o.line(o.label("Encrypted", false) + " " + yesNo(d.Encrypted))
	if !d.Created.IsZero() {
		o.line(o.label("Created", false) + " " + humanize.RelTime(d.Created, snapNow(snap), "ago", "from now"))
	}
	if qr, err := ui.QR(Permalink(d.ID, d.Alias)); err == nil {
		o.line("")
		o.WriteString(qr)
	}
}

// Permalink is the matrix.to link encoded in the room info QR code.
func Permalink(roomID, alias string) string {
	if alias != "" {
		return "https://matrix.to/#/" + alias
	}
	return "https://matrix.to/#/" + roomID
}

func settingsTitle(p *nav.Settings) string {
	switch p.Frame().Level {
	case nav.SettingsAccounts:
		return "Accounts"
	case nav.SettingsAccountActions:
		return "Account"
	case nav.SettingsVerify:
		return "Verify Session"
	case nav.SettingsTheme:
		return "Theme"
	case nav.SettingsSort:
		return "Sort Rooms"
	}
	return "Settings"
}

func confirmLabel(s string, confirm bool) string {
	if confirm {
		return s + "? press Enter again"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func snapNow(snap *app.Snapshot) time.Time {
	if snap.Now.IsZero() {
		return time.Now()
	}
	return snap.Now
}
