package backend

import "context"

// RequestState is the phase of a verification request.
type RequestState int

const (
	RequestPending RequestState = iota
	RequestReady
	RequestTransitioned
	RequestDone
	RequestCancelled
)

func (s RequestState) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestReady:
		return "ready"
	case RequestTransitioned:
		return "transitioned"
	case RequestDone:
		return "done"
	case RequestCancelled:
		return "cancelled"
	}
	return "unknown"
}

// RequestUpdate is one observed state of a request. Sas is set when the
// request transitioned into a SAS flow started by the peer.
type RequestUpdate struct {
	State  RequestState
	Sas    Sas
	Reason string
}

// VerificationRequest is an in-progress verification handshake.
type VerificationRequest interface {
	FlowID() string
	PeerUserID() string
	// State returns the current state without waiting.
	State() RequestUpdate
	// Changes streams later states. It is closed when ctx ends or the
	// request reaches a final state.
	Changes(ctx context.Context) <-chan RequestUpdate
	Accept(ctx context.Context) error
	StartSas(ctx context.Context) (Sas, error)
	Cancel(ctx context.Context) error
}

// SasState is the phase of a SAS exchange.
type SasState int

const (
	SasPending SasState = iota
	SasKeysExchanged
	SasConfirmed
	SasDoneState
	SasCancelledState
)

// SasUpdate is one observed SAS state.
type SasUpdate struct {
	State  SasState
	Emojis []Emoji
	Reason string
}

// Emoji is one symbol of the short authentication string.
type Emoji struct {
	Symbol string
	Label  string
}

// Sas is an emoji verification exchange.
type Sas interface {
	FlowID() string
	// Emojis returns the string once keys were exchanged.
	Emojis() ([]Emoji, bool)
	Changes(ctx context.Context) <-chan SasUpdate
	Accept(ctx context.Context) error
	Confirm(ctx context.Context) error
	Mismatch(ctx context.Context) error
	Cancel(ctx context.Context) error
}
