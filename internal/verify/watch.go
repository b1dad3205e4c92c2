package verify

import (
	"context"
	"fmt"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// Emit pushes an event to the coordinator and reports whether it was taken.
type Emit func(backend.Event) bool

// AcceptIncoming accepts a peer's request and then watches it like a
// self-initiated one.
func AcceptIncoming(ctx context.Context, req backend.VerificationRequest, emit Emit) {
	if err := req.Accept(ctx); err != nil {
		emit(backend.SasCancelled{FlowID: req.FlowID(), Reason: fmt.Sprintf("Accept failed: %v", err)})
		return
	}
	WatchRequest(ctx, req, emit)
}

// WatchRequest follows a request until a SAS exchange starts, then follows
// the exchange. The current state is inspected before any change from the
// stream is consumed, so a peer that became ready before the watcher
// started is not missed.
func WatchRequest(ctx context.Context, req backend.VerificationRequest, emit Emit) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	flow := req.FlowID()
	changes := req.Changes(ctx)

	current := req.State()
	switch current.State {
	case backend.RequestDone, backend.RequestCancelled:
		emit(backend.SasCancelled{FlowID: flow, Reason: "Request already finished"})
		return
	case backend.RequestReady, backend.RequestTransitioned:
		if sas := startSas(ctx, req, current, emit); sas != nil {
			WatchSas(ctx, flow, sas, emit)
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-changes:
			if !ok {
				return
			}
			switch u.State {
			case backend.RequestReady, backend.RequestTransitioned:
				if sas := startSas(ctx, req, u, emit); sas != nil {
					WatchSas(ctx, flow, sas, emit)
				}
				return
			case backend.RequestDone:
				return
			case backend.RequestCancelled:
				emit(backend.SasCancelled{FlowID: flow, Reason: u.Reason})
				return
			}
		}
	}
}

func startSas(ctx context.Context, req backend.VerificationRequest, u backend.RequestUpdate, emit Emit) backend.Sas {
	flow := req.FlowID()
	sas := u.Sas
	if u.State == backend.RequestReady {
		var err error
		if sas, err = req.StartSas(ctx); err != nil {
			emit(backend.SasCancelled{FlowID: flow, Reason: err.Error()})
			return nil
		}
	}
	if sas == nil {
		emit(backend.SasCancelled{FlowID: flow, Reason: "Failed to start SAS"})
		return nil
	}
	_ = sas.Accept(ctx)
	if !emit(backend.SasStarted{FlowID: flow, Sas: sas}) {
		return nil
	}
	return sas
}

// WatchSas reports the emoji string and the outcome of a SAS exchange.
// Emojis already available are reported before the stream is read.
func WatchSas(ctx context.Context, flow string, sas backend.Sas, emit Emit) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := sas.Changes(ctx)

	shown := false
	if emojis, ok := sas.Emojis(); ok {
		shown = emit(backend.SasEmojisReady{FlowID: flow, Emojis: emojis})
	}
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-changes:
			if !ok {
				return
			}
			switch u.State {
			case backend.SasKeysExchanged:
				if !shown && len(u.Emojis) > 0 {
					shown = emit(backend.SasEmojisReady{FlowID: flow, Emojis: u.Emojis})
				}
			case backend.SasDoneState:
				emit(backend.SasDone{FlowID: flow})
				return
			case backend.SasCancelledState:
				emit(backend.SasCancelled{FlowID: flow, Reason: u.Reason})
				return
			}
		}
	}
}
