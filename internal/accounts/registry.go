package accounts

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/status"
)

// Emitter pushes an event onto the coordinator queue. It gives up and
// returns false when ctx is done. gen names the sync task that produced ev;
// see Registry.Current.
type Emitter func(ctx context.Context, gen uint64, ev backend.Event) bool

// Account is one logged-in identity with its sync task.
type Account struct {
	ID          string
	Homeserver  string
	DisplayName string
	Client      backend.Client
	Status      *status.Machine

	cancel context.CancelFunc
	done   chan struct{}
	gen    uint64
}

// State returns the connection state.
func (a *Account) State() status.State { return a.Status.Current() }

// Synced reports whether the first sync completed.
func (a *Account) Synced() bool { return a.Status.HasSynced() }

// Gen identifies the account's current sync task.
func (a *Account) Gen() uint64 { return a.gen }

// Host returns the homeserver host for status lines.
func (a *Account) Host() string { return Host(a.Homeserver) }

// Registry owns the active accounts. It is not safe for concurrent use;
// only the coordinator loop touches it.
type Registry struct {
	accounts []*Account
	failures map[string]error
	lastGen  uint64
	emit     Emitter
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewRegistry creates an empty registry whose sync tasks emit through emit.
func NewRegistry(emit Emitter, b *bus.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		failures: make(map[string]error),
		emit:     emit,
		bus:      b,
		logger:   logger,
	}
}

// Accounts returns the active accounts in login order.
func (r *Registry) Accounts() []*Account { return r.accounts }

// Len returns the number of active accounts.
func (r *Registry) Len() int { return len(r.accounts) }

// Get looks up an account by user id.
func (r *Registry) Get(id string) (*Account, bool) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// At returns the account at index i.
func (r *Registry) At(i int) (*Account, bool) {
	if i < 0 || i >= len(r.accounts) {
		return nil, false
	}
	return r.accounts[i], true
}

// IsLocal reports whether userID belongs to an active account.
func (r *Registry) IsLocal(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

// Current reports whether gen belongs to a sync task that is still running
// for an active account. Events from a cancelled task can reach the queue
// after Reconnect, and they carry the old generation.
func (r *Registry) Current(gen uint64) bool {
	return slices.ContainsFunc(r.accounts, func(a *Account) bool { return a.gen == gen })
}

// CheckDuplicate rejects a homeserver+user pair matching an active account.
func (r *Registry) CheckDuplicate(homeserver, user string) error {
	want := CanonicalUserID(homeserver, user)
	host := Host(homeserver)
	for _, a := range r.accounts {
		id := strings.ToLower(a.ID)
		if id == want || (a.Host() == host && localpart(id) == localpart(want)) {
			return &backend.AuthError{Op: "login", Reason: a.ID, Err: backend.ErrAlreadyLoggedIn}
		}
	}
	return nil
}

// Add registers an authenticated client and starts its sync task.
func (r *Registry) Add(client backend.Client) (*Account, error) {
	if err := r.CheckDuplicate(client.Homeserver(), client.UserID()); err != nil {
		return nil, err
	}
	a := &Account{
		ID:         client.UserID(),
		Homeserver: client.Homeserver(),
		Client:     client,
		Status:     status.NewMachine(client.UserID(), r.bus),
	}
	r.accounts = append(r.accounts, a)
	delete(r.failures, a.ID)
	r.startSync(a, nil)
	r.bus.Emit(bus.KindAccountAdded, a.ID)
	r.logger.Info("account added", zap.String("account", a.ID), zap.String("homeserver", a.Homeserver))
	return a, nil
}

// Remove cancels the account's sync task, closes its client and drops it.
func (r *Registry) Remove(id string) error {
	i := slices.IndexFunc(r.accounts, func(a *Account) bool { return a.ID == id })
	if i < 0 {
		return &backend.NotFoundError{Kind: "account", ID: id}
	}
	a := r.accounts[i]
	r.stopSync(a)
	a.Client.Close()
	r.accounts = slices.Delete(r.accounts, i, i+1)
	r.bus.Emit(bus.KindAccountRemoved, id)
	r.logger.Info("account removed", zap.String("account", id))
	return nil
}

// Reconnect restarts the sync task of an account. The new task starts only
// after the cancelled one has returned, so the two never overlap.
func (r *Registry) Reconnect(id string) error {
	a, ok := r.Get(id)
	if !ok {
		return &backend.NotFoundError{Kind: "account", ID: id}
	}
	prev := a.done
	r.stopSync(a)
	r.transition(a, a.Status.Transition(status.Disconnected))
	r.startSync(a, prev)
	r.logger.Info("account reconnecting", zap.String("account", id))
	return nil
}

// StopAll cancels every sync task and waits up to timeout for them to exit.
func (r *Registry) StopAll(timeout time.Duration) {
	deadline := time.After(timeout)
	for _, a := range r.accounts {
		r.stopSync(a)
	}
	for _, a := range r.accounts {
		select {
		case <-a.done:
		case <-deadline:
			r.logger.Warn("sync task did not stop in time", zap.String("account", a.ID))
			return
		}
	}
}

// RecordFailure remembers a restore failure for display.
func (r *Registry) RecordFailure(userID string, err error) {
	r.failures[userID] = err
	r.logger.Warn("account restore failed", zap.String("account", userID), zap.Error(err))
}

// Failures returns accounts whose restore failed.
func (r *Registry) Failures() map[string]error { return r.failures }

// MarkSynced records a completed sync.
func (r *Registry) MarkSynced(id string) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	r.transition(a, a.Status.Transition(status.Synced))
	return true
}

// MarkFailed moves only the given account to Error.
func (r *Registry) MarkFailed(id string, err error) bool {
	a, ok := r.Get(id)
	if !ok {
		return false
	}
	reason := "sync stopped"
	if err != nil {
		reason = err.Error()
	}
	r.transition(a, a.Status.Fail(reason))
	return true
}

func (r *Registry) transition(a *Account, err error) {
	if err != nil {
		r.logger.Debug("ignored status transition", zap.String("account", a.ID), zap.Error(err))
	}
}

// StatusLine renders "host: state | host: state".
func (r *Registry) StatusLine() string {
	parts := make([]string, 0, len(r.accounts))
	for _, a := range r.accounts {
		state := strings.ToLower(string(a.State()))
		if a.State() == status.Error {
			state = "error: " + a.Status.Reason()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Host(), state))
	}
	return strings.Join(parts, " | ")
}

func (r *Registry) startSync(a *Account, prev <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	done := make(chan struct{})
	a.done = done
	r.lastGen++
	gen := r.lastGen
	a.gen = gen
	r.transition(a, a.Status.Transition(status.Syncing))

	sink := func(ev backend.Event) bool {
		if ctx.Err() != nil {
			return false
		}
		return r.emit(ctx, gen, ev)
	}
	go func() {
		defer close(done)
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				return
			}
		}
		err := a.Client.Sync(ctx, sink)
		if err != nil && ctx.Err() == nil {
			r.emit(ctx, gen, backend.SyncFailed{Account: a.ID, Err: err})
		}
	}()
}

func (r *Registry) stopSync(a *Account) {
	if a.cancel != nil {
		a.cancel()
	}
}
