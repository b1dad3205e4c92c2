package matrix

import (
	"context"
	"sync"

	"maunium.net/go/mautrix/crypto"
	"maunium.net/go/mautrix/crypto/verificationhelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// stream fans state updates out to watchers. A final update closes every
// watcher channel.
type stream[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	closed bool
}

func (s *stream[T]) subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 8)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	if s.subs == nil {
		s.subs = make(map[chan T]struct{})
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}()
	return ch
}

func (s *stream[T]) publish(v T, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
		if final {
			delete(s.subs, ch)
			close(ch)
		}
	}
	if final {
		s.closed = true
	}
}

// verifier routes verification helper callbacks to request and SAS
// objects keyed by transaction id.
type verifier struct {
	client *Client
	helper *verificationhelper.VerificationHelper

	mu       sync.Mutex
	requests map[id.VerificationTransactionID]*request
}

func newVerifier(ctx context.Context, c *Client, mach *crypto.OlmMachine) (*verifier, error) {
	v := &verifier{client: c, requests: make(map[id.VerificationTransactionID]*request)}
	v.helper = verificationhelper.NewVerificationHelper(c.cli, mach, verificationhelper.NewInMemoryVerificationStore(), v, false, false, true)
	if err := v.helper.Init(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *verifier) track(txnID id.VerificationTransactionID, peer string) *request {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r, ok := v.requests[txnID]; ok {
		return r
	}
	r := &request{v: v, txnID: txnID, peer: peer}
	r.sas = &sas{r: r}
	v.requests[txnID] = r
	return r
}

func (v *verifier) get(txnID id.VerificationTransactionID) *request {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requests[txnID]
}

func (v *verifier) drop(txnID id.VerificationTransactionID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.requests, txnID)
}

func (v *verifier) closeAll() {
	v.mu.Lock()
	reqs := make([]*request, 0, len(v.requests))
	for _, r := range v.requests {
		reqs = append(reqs, r)
	}
	v.mu.Unlock()
	for _, r := range reqs {
		r.cancelled("Client closed")
	}
}

func (v *verifier) VerificationRequested(_ context.Context, txnID id.VerificationTransactionID, from id.UserID, _ id.DeviceID) {
	v.track(txnID, from.String())
	v.client.emit(backend.VerificationRequestReceived{
		Account: v.client.UserID(),
		UserID:  from.String(),
		FlowID:  string(txnID),
	})
}

func (v *verifier) VerificationReady(ctx context.Context, txnID id.VerificationTransactionID, _ id.DeviceID, supportsSAS, _ bool, _ *verificationhelper.QRCode) {
	r := v.get(txnID)
	if r == nil {
		return
	}
	if !supportsSAS {
		_ = v.helper.CancelVerification(ctx, txnID, event.VerificationCancelCodeUnknownMethod, "emoji verification is required")
		return
	}
	r.move(backend.RequestUpdate{State: backend.RequestReady})
}

func (v *verifier) VerificationCancelled(_ context.Context, txnID id.VerificationTransactionID, _ event.VerificationCancelCode, reason string) {
	if r := v.get(txnID); r != nil {
		r.cancelled(reason)
	}
}

func (v *verifier) VerificationDone(_ context.Context, txnID id.VerificationTransactionID, _ event.VerificationMethod) {
	r := v.get(txnID)
	if r == nil {
		return
	}
	r.sas.changes.publish(backend.SasUpdate{State: backend.SasDoneState}, true)
	r.move(backend.RequestUpdate{State: backend.RequestDone})
	v.drop(txnID)
}

func (v *verifier) ShowSAS(_ context.Context, txnID id.VerificationTransactionID, emojis []rune, descriptions []string, _ []int) {
	r := v.get(txnID)
	if r == nil {
		return
	}
	set := make([]backend.Emoji, len(emojis))
	for i, e := range emojis {
		set[i] = backend.Emoji{Symbol: string(e)}
		if i < len(descriptions) {
			set[i].Label = descriptions[i]
		}
	}
	r.sas.keysExchanged(set)

	// The peer started SAS, so the request hands the exchange over.
	if !r.startedLocally() {
		r.move(backend.RequestUpdate{State: backend.RequestTransitioned, Sas: r.sas})
	}
}

// request is one verification handshake.
type request struct {
	v     *verifier
	txnID id.VerificationTransactionID
	peer  string
	sas   *sas

	mu      sync.Mutex
	state   backend.RequestUpdate
	started bool
	changes stream[backend.RequestUpdate]
}

var _ backend.VerificationRequest = (*request)(nil)

func (r *request) FlowID() string     { return string(r.txnID) }
func (r *request) PeerUserID() string { return r.peer }

func (r *request) State() backend.RequestUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *request) Changes(ctx context.Context) <-chan backend.RequestUpdate {
	return r.changes.subscribe(ctx)
}

func (r *request) move(u backend.RequestUpdate) {
	r.mu.Lock()
	r.state = u
	r.mu.Unlock()
	r.changes.publish(u, u.State == backend.RequestDone || u.State == backend.RequestCancelled)
}

func (r *request) cancelled(reason string) {
	if reason == "" {
		reason = "Verification cancelled"
	}
	r.sas.changes.publish(backend.SasUpdate{State: backend.SasCancelledState, Reason: reason}, true)
	r.move(backend.RequestUpdate{State: backend.RequestCancelled, Reason: reason})
	r.v.drop(r.txnID)
}

func (r *request) startedLocally() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *request) Accept(ctx context.Context) error {
	return cleanErr(r.v.helper.AcceptVerification(ctx, r.txnID))
}

func (r *request) StartSas(ctx context.Context) (backend.Sas, error) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	if err := r.v.helper.StartSAS(ctx, r.txnID); err != nil {
		return nil, cleanErr(err)
	}
	return r.sas, nil
}

func (r *request) Cancel(ctx context.Context) error {
	return cleanErr(r.v.helper.CancelVerification(ctx, r.txnID, event.VerificationCancelCodeUser, "Cancelled by user"))
}

// sas is the emoji exchange of a request.
type sas struct {
	r *request

	mu      sync.Mutex
	emojis  []backend.Emoji
	changes stream[backend.SasUpdate]
}

var _ backend.Sas = (*sas)(nil)

func (s *sas) FlowID() string { return string(s.r.txnID) }

func (s *sas) Emojis() ([]backend.Emoji, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emojis, len(s.emojis) > 0
}

func (s *sas) Changes(ctx context.Context) <-chan backend.SasUpdate {
	return s.changes.subscribe(ctx)
}

func (s *sas) keysExchanged(emojis []backend.Emoji) {
	s.mu.Lock()
	s.emojis = emojis
	s.mu.Unlock()
	s.changes.publish(backend.SasUpdate{State: backend.SasKeysExchanged, Emojis: emojis}, false)
}

// Accept is a no-op: the helper accepts the peer's start on its own.
func (s *sas) Accept(context.Context) error { return nil }

func (s *sas) Confirm(ctx context.Context) error {
	if err := s.r.v.helper.ConfirmSAS(ctx, s.r.txnID); err != nil {
		return cleanErr(err)
	}
	s.changes.publish(backend.SasUpdate{State: backend.SasConfirmed}, false)
	return nil
}

func (s *sas) Mismatch(ctx context.Context) error {
	return cleanErr(s.r.v.helper.CancelVerification(ctx, s.r.txnID, event.VerificationCancelCodeSASMismatch, "Emoji did not match"))
}

func (s *sas) Cancel(ctx context.Context) error {
	return s.r.Cancel(ctx)
}

// RequestVerification asks the account's other devices to verify this one.
func (c *Client) RequestVerification(ctx context.Context) (backend.VerificationRequest, error) {
	if c.verifier == nil {
		return nil, &backend.BackendError{Op: "request verification", Err: backend.ErrUnsupported}
	}
	txnID, err := c.verifier.helper.StartVerification(ctx, c.cli.UserID)
	if err != nil {
		return nil, cleanErr(err)
	}
	return c.verifier.track(txnID, c.UserID()), nil
}

// IncomingVerification returns a request announced by a
// VerificationRequestReceived event.
func (c *Client) IncomingVerification(_ context.Context, userID, flowID string) (backend.VerificationRequest, error) {
	if c.verifier == nil {
		return nil, &backend.BackendError{Op: "verification", Err: backend.ErrUnsupported}
	}
	r := c.verifier.get(id.VerificationTransactionID(flowID))
	if r == nil || r.peer != userID {
		return nil, &backend.NotFoundError{Kind: "verification request", ID: flowID}
	}
	return r, nil
}
