// Package verify drives interactive SAS device verification.
package verify

import (
	"fmt"
	"slices"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// State is the phase of a verification session.
type State int

const (
	Idle State = iota
	Requested
	Incoming
	Ready
	SasStarted
	KeysExchanged
	Confirmed
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Incoming:
		return "incoming"
	case Ready:
		return "ready"
	case SasStarted:
		return "sas started"
	case KeysExchanged:
		return "keys exchanged"
	case Confirmed:
		return "confirmed"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	}
	return "idle"
}

// MismatchReason is shown after the user rejects the emojis.
const MismatchReason = "Emojis did not match, verification cancelled"

var validTransitions = map[State][]State{
	Idle:          {Requested, Incoming},
	Requested:     {Ready, SasStarted, Cancelled},
	Incoming:      {Ready, SasStarted, Cancelled},
	Ready:         {SasStarted, Cancelled},
	SasStarted:    {KeysExchanged, Cancelled},
	KeysExchanged: {Confirmed, Done, Cancelled},
	Confirmed:     {Done, Cancelled},
}

// Session is one verification flow. Events carrying another flow id are
// never applied to it.
type Session struct {
	Account    string
	FlowID     string
	PeerUserID string
	State      State
	Emojis     []backend.Emoji
	Reason     string
	Accepting  bool

	Request backend.VerificationRequest
	Sas     backend.Sas
}

// NewRequested starts a self-initiated session.
func NewRequested(account string, req backend.VerificationRequest) *Session {
	return &Session{
		Account:    account,
		FlowID:     req.FlowID(),
		PeerUserID: req.PeerUserID(),
		State:      Requested,
		Request:    req,
	}
}

// NewIncoming records a request from another device awaiting accept.
func NewIncoming(account, peer, flowID string) *Session {
	return &Session{Account: account, FlowID: flowID, PeerUserID: peer, State: Incoming}
}

func (s *Session) move(to State) error {
	if !slices.Contains(validTransitions[s.State], to) {
		return fmt.Errorf("invalid verification transition from %s to %s", s.State, to)
	}
	s.State = to
	return nil
}

// Applies reports whether an event for flowID may change this session.
func (s *Session) Applies(flowID string) bool {
	return s != nil && s.FlowID == flowID && !s.Terminal()
}

// Terminal reports whether only dismissal is left.
func (s *Session) Terminal() bool { return s.State == Done || s.State == Cancelled }

// Busy reports whether the session waits on the peer after the user
// confirmed.
func (s *Session) Busy() bool { return s.State == Confirmed || s.Accepting }

// StartSas records the SAS object. A request still waiting passes through
// Ready first.
func (s *Session) StartSas(flowID string, sas backend.Sas) bool {
	if !s.Applies(flowID) {
		return false
	}
	if s.State == Requested || s.State == Incoming {
		_ = s.move(Ready)
	}
	if s.move(SasStarted) != nil {
		return false
	}
	s.Accepting = false
	s.Sas = sas
	return true
}

// ShowEmojis records the short authentication string.
func (s *Session) ShowEmojis(flowID string, emojis []backend.Emoji) bool {
	if !s.Applies(flowID) {
		return false
	}
	if s.State == KeysExchanged {
		s.Emojis = emojis
		return true
	}
	if s.move(KeysExchanged) != nil {
		return false
	}
	s.Emojis = emojis
	return true
}

// Confirm is the user's "emojis match" decision.
func (s *Session) Confirm() error { return s.move(Confirmed) }

// Mismatch is the user's "emojis differ" decision.
func (s *Session) Mismatch() error {
	if s.State != KeysExchanged {
		return fmt.Errorf("cannot reject emojis in state %s", s.State)
	}
	s.State = Cancelled
	s.Reason = MismatchReason
	return nil
}

// Finish applies a completed flow.
func (s *Session) Finish(flowID string) bool {
	if !s.Applies(flowID) {
		return false
	}
	return s.move(Done) == nil
}

// Cancel ends the flow with a reason. An empty reason gets a default.
func (s *Session) Cancel(flowID, reason string) bool {
	if !s.Applies(flowID) {
		return false
	}
	if reason == "" {
		reason = "Verification cancelled"
	}
	s.State = Cancelled
	s.Reason = reason
	s.Accepting = false
	return true
}
