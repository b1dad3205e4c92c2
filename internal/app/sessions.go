package app

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/accounts"
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/nav"
)

// restore reopens every saved session in the background.
func (c *Coordinator) restore() {
	saved := c.config.Config().Accounts
	if len(saved) == 0 || c.backend == nil {
		return
	}
	creds := make([]backend.Credentials, len(saved))
	for i, a := range saved {
		creds[i] = backend.Credentials{
			Homeserver:  a.Homeserver,
			UserID:      a.UserID,
			AccessToken: a.AccessToken,
			DeviceID:    a.DeviceID,
		}
	}
	c.state.Status = fmt.Sprintf("Restoring %d account(s)...", len(creds))
	be := c.backend
	c.spawn(func(ctx context.Context) Event {
		return RestoreDone{Result: accounts.RestoreAll(ctx, be, creds)}
	})
}

func (c *Coordinator) restored(res accounts.RestoreResult) {
	reg := c.state.Accounts
	for _, s := range res.Sessions {
		if _, err := reg.Add(s.Client); err != nil {
			s.Client.Close()
			reg.RecordFailure(s.Credentials.UserID, err)
		}
	}
	for id, err := range res.Failures {
		reg.RecordFailure(id, err)
	}
	if n := len(reg.Failures()); n > 0 {
		c.state.Status = fmt.Sprintf("%d account(s) failed to restore", n)
	} else {
		c.state.Status = reg.StatusLine()
	}
	c.refreshRooms()
}

func (c *Coordinator) submitLogin(cmd nav.SubmitLogin) {
	t := Task{Op: "login", Account: cmd.Username, Gen: cmd.Gen}
	if err := c.state.Accounts.CheckDuplicate(cmd.Homeserver, cmd.Username); err != nil {
		c.fail(t, err)
		return
	}
	be := c.backend
	c.spawn(func(ctx context.Context) Event {
		s, err := accounts.Login(ctx, be, cmd.Homeserver, cmd.Username, cmd.Password)
		return LoginDone{Task: t, Session: s, Err: err}
	})
}

// loggedIn registers a new account. A login that finishes after its form
// was closed still adds the account.
func (c *Coordinator) loggedIn(ev LoginDone) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	a, err := c.state.Accounts.Add(ev.Session.Client)
	if err != nil {
		ev.Session.Client.Close()
		c.fail(ev.Task, err)
		return
	}
	creds := ev.Session.Credentials
	c.config.Update(func(cfg *config.Config) {
		cfg.AddAccount(config.Account{
			Homeserver:  creds.Homeserver,
			UserID:      creds.UserID,
			AccessToken: creds.AccessToken,
			DeviceID:    creds.DeviceID,
		})
	})
	c.state.Nav.CloseIf(ev.Gen)
	c.state.Status = "Logged in as " + a.ID
	c.refreshRooms()
}

func (c *Coordinator) reconnect(id string) {
	if err := c.state.Accounts.Reconnect(id); err != nil {
		c.fail(Task{Op: "reconnect", Account: id}, err)
		return
	}
	c.state.Status = "Reconnecting " + id
}

// removeAccount stops the account's sync, forgets its saved session and
// drops its rooms.
func (c *Coordinator) removeAccount(id string) {
	st := c.state
	if err := st.Accounts.Remove(id); err != nil {
		c.fail(Task{Op: "remove account", Account: id}, err)
		return
	}
	c.config.Update(func(cfg *config.Config) { cfg.RemoveAccount(id) })
	if st.Rooms.RemoveAccount(id) && st.Nav.Focus == nav.FocusChat {
		st.Nav.Focus = nav.FocusRooms
	}
	st.all = slices.DeleteFunc(st.all, func(r chat.Room) bool { return r.AccountID == id })
	if s := st.Verification; s != nil && s.Account == id {
		c.cancelVerification()
		st.Verification = nil
		if st.Nav.Verification() != nil {
			st.Nav.Close()
		}
	}
	c.relist()
	st.Status = "Removed " + id
}

func (c *Coordinator) loadProfile(cmd nav.LoadProfile) {
	t := Task{Op: "load profile", Account: cmd.AccountID, Gen: cmd.Gen}
	a, err := c.account(cmd.AccountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		name, err := client.DisplayName(ctx)
		return ProfileLoaded{Task: t, Name: name, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) profileLoaded(ev ProfileLoaded) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	if a, ok := c.state.Accounts.Get(ev.Account); ok {
		a.DisplayName = ev.Name
	}
	c.state.Nav.ProfileLoaded(ev.Gen, ev.Name)
}

func (c *Coordinator) updateProfile(cmd nav.UpdateProfile) {
	t := Task{Op: "update profile", Account: cmd.AccountID, Gen: cmd.Gen}
	a, err := c.account(cmd.AccountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		var err error
		switch cmd.Field {
		case nav.ProfileDisplayName:
			err = client.SetDisplayName(ctx, cmd.Value)
		case nav.ProfileAvatarURL:
			err = client.SetAvatarURL(ctx, cmd.Value)
		default:
			var url string
			if url, err = client.UploadAvatar(ctx, cmd.Value); err == nil {
				err = client.SetAvatarURL(ctx, url)
			}
		}
		return ProfileUpdated{Task: t, Field: cmd.Field, Value: cmd.Value, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) profileUpdated(ev ProfileUpdated) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	if a, ok := c.state.Accounts.Get(ev.Account); ok && ev.Field == nav.ProfileDisplayName {
		a.DisplayName = ev.Value
	}
	c.state.Nav.CloseIf(ev.Gen)
	c.state.Status = "Profile updated"
}

func (c *Coordinator) recoverKeys(cmd nav.RecoverKeys) {
	t := Task{Op: "recover keys", Account: cmd.AccountID, Gen: cmd.Gen}
	a, err := c.account(cmd.AccountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		return KeysRecovered{Task: t, Err: backend.Wrap(t.Op, client.RecoverKeys(ctx, cmd.Key))}
	})
}

func (c *Coordinator) keysRecovered(ev KeysRecovered) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	c.logger.Info("recovery key accepted", zap.String("account", ev.Account))
	c.state.Nav.CloseIf(ev.Gen)
	c.state.Status = "Encryption keys recovered for " + ev.Account
}
