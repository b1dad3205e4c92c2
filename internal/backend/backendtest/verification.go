package backendtest

import (
	"context"
	"sync"

	"github.com/matheus3301/matrixtui/internal/backend"
)

type fanout[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

func (f *fanout[T]) subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 8)
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[chan T]struct{})
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}()
	return ch
}

func (f *fanout[T]) publish(v T, final bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- v:
		default:
		}
		if final {
			delete(f.subs, ch)
			close(ch)
		}
	}
}

// Request is a scriptable verification request.
type Request struct {
	mu       sync.Mutex
	flowID   string
	peer     string
	state    backend.RequestUpdate
	sas      *Sas
	accepted bool
	changes  fanout[backend.RequestUpdate]

	// ReadyOnAccept moves the request to Ready when Accept is called.
	ReadyOnAccept bool
}

// NewRequest creates a pending request.
func NewRequest(flowID, peer string) *Request {
	return &Request{flowID: flowID, peer: peer, sas: NewSas(flowID), ReadyOnAccept: true}
}

// Sas returns the SAS object StartSas hands out.
func (r *Request) Sas() *Sas { return r.sas }

// Accepted reports whether Accept was called.
func (r *Request) Accepted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepted
}

// Set changes the state without notifying subscribers.
func (r *Request) Set(u backend.RequestUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = u
}

// Move changes the state and notifies subscribers.
func (r *Request) Move(u backend.RequestUpdate) {
	r.Set(u)
	r.changes.publish(u, u.State == backend.RequestDone || u.State == backend.RequestCancelled)
}

func (r *Request) FlowID() string     { return r.flowID }
func (r *Request) PeerUserID() string { return r.peer }

func (r *Request) State() backend.RequestUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Request) Changes(ctx context.Context) <-chan backend.RequestUpdate {
	return r.changes.subscribe(ctx)
}

func (r *Request) Accept(ctx context.Context) error {
	r.mu.Lock()
	r.accepted = true
	ready := r.ReadyOnAccept
	r.mu.Unlock()
	if ready {
		r.Move(backend.RequestUpdate{State: backend.RequestReady})
	}
	return nil
}

func (r *Request) StartSas(ctx context.Context) (backend.Sas, error) {
	return r.sas, nil
}

func (r *Request) Cancel(ctx context.Context) error {
	r.Move(backend.RequestUpdate{State: backend.RequestCancelled, Reason: "cancelled by user"})
	return nil
}

// Sas is a scriptable SAS exchange.
type Sas struct {
	mu        sync.Mutex
	flowID    string
	emojis    []backend.Emoji
	confirmed bool
	cancelled bool
	changes   fanout[backend.SasUpdate]
}

// NewSas creates a SAS exchange without emojis.
func NewSas(flowID string) *Sas { return &Sas{flowID: flowID} }

// SetEmojis stores the string without notifying subscribers.
func (s *Sas) SetEmojis(e []backend.Emoji) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emojis = e
}

// ExchangeKeys stores the string and notifies subscribers.
func (s *Sas) ExchangeKeys(e []backend.Emoji) {
	s.SetEmojis(e)
	s.changes.publish(backend.SasUpdate{State: backend.SasKeysExchanged, Emojis: e}, false)
}

// Finish reports a completed verification.
func (s *Sas) Finish() {
	s.changes.publish(backend.SasUpdate{State: backend.SasDoneState}, true)
}

// CancelWith reports a cancellation by the peer.
func (s *Sas) CancelWith(reason string) {
	s.changes.publish(backend.SasUpdate{State: backend.SasCancelledState, Reason: reason}, true)
}

// Confirmed reports whether Confirm was called.
func (s *Sas) Confirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// Cancelled reports whether Cancel or Mismatch was called.
func (s *Sas) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Sas) FlowID() string { return s.flowID }

func (s *Sas) Emojis() ([]backend.Emoji, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emojis, len(s.emojis) > 0
}

func (s *Sas) Changes(ctx context.Context) <-chan backend.SasUpdate {
	return s.changes.subscribe(ctx)
}

func (s *Sas) Accept(ctx context.Context) error { return nil }

func (s *Sas) Confirm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = true
	return nil
}

func (s *Sas) Mismatch(ctx context.Context) error {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	return nil
}

func (s *Sas) Cancel(ctx context.Context) error {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	return nil
}
