package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/verify"
)

// startVerification asks the account's other devices to verify this one.
// Any session already running is cancelled first.
func (c *Coordinator) startVerification(gen uint64, accountID string) {
	t := Task{Op: "verification", Account: accountID, Gen: gen}
	a, err := c.account(accountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	c.cancelVerification()
	c.state.Verification = nil

	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		req, err := client.RequestVerification(ctx)
		return VerificationStarted{Task: t, Request: req, Err: backend.Wrap("request verification", err)}
	})
}

func (c *Coordinator) verificationStarted(ev VerificationStarted) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	if c.state.Nav.Form(ev.Gen) == nil {
		// The overlay was closed while the request was being sent.
		req := ev.Request
		c.spawn(func(ctx context.Context) Event {
			_ = req.Cancel(ctx)
			return nil
		})
		return
	}
	c.state.Verification = verify.NewRequested(ev.Account, ev.Request)
	c.done(ev.Task)
	c.logger.Info("verification requested", zap.String("account", ev.Account), zap.String("flow", ev.Request.FlowID()))

	req := ev.Request
	c.watch(func(ctx context.Context, emit verify.Emit) {
		verify.WatchRequest(ctx, req, emit)
	})
}

// incomingVerification records a request from another device. The overlay
// opens as soon as nothing else is on screen.
func (c *Coordinator) incomingVerification(ev backend.VerificationRequestReceived) {
	if s := c.state.Verification; s != nil && !s.Terminal() {
		c.logger.Info("verification request ignored, another flow is running",
			zap.String("account", ev.Account), zap.String("flow", ev.FlowID))
		return
	}
	c.stopWatch()
	c.state.Verification = verify.NewIncoming(ev.Account, ev.UserID, ev.FlowID)
	c.promptVerify = true
	c.state.Status = "Verification request from " + ev.UserID
}

func (c *Coordinator) acceptVerification() {
	s := c.state.Verification
	if s == nil || s.State != verify.Incoming || s.Accepting {
		return
	}
	a, err := c.account(s.Account)
	if err != nil {
		s.Cancel(s.FlowID, backend.Message(err))
		return
	}
	s.Accepting = true

	client, peer, flow := a.Client, s.PeerUserID, s.FlowID
	c.watch(func(ctx context.Context, emit verify.Emit) {
		req, err := client.IncomingVerification(ctx, peer, flow)
		if err != nil {
			emit(backend.SasCancelled{FlowID: flow, Reason: backend.Message(err)})
			return
		}
		if !c.queue.Push(ctx, VerificationAttached{FlowID: flow, Request: req}) {
			return
		}
		verify.AcceptIncoming(ctx, req, emit)
	})
}

func (c *Coordinator) confirmVerification() {
	s := c.state.Verification
	if s == nil || s.Sas == nil {
		return
	}
	if err := s.Confirm(); err != nil {
		c.logger.Debug("confirm ignored", zap.Error(err))
		return
	}
	sas, flow := s.Sas, s.FlowID
	c.spawn(func(ctx context.Context) Event {
		if err := sas.Confirm(ctx); err != nil {
			return Backend{Event: backend.SasCancelled{FlowID: flow, Reason: backend.Message(err)}}
		}
		return nil
	})
}

func (c *Coordinator) rejectVerification() {
	s := c.state.Verification
	if s == nil || s.Sas == nil {
		return
	}
	if err := s.Mismatch(); err != nil {
		c.logger.Debug("mismatch ignored", zap.Error(err))
		return
	}
	sas := s.Sas
	c.spawn(func(ctx context.Context) Event {
		_ = sas.Mismatch(ctx)
		return nil
	})
	c.stopWatch()
}

// cancelVerification cancels the running flow on the server and stops
// watching it. The session stays so its outcome can still be shown.
func (c *Coordinator) cancelVerification() {
	s := c.state.Verification
	if s != nil && !s.Terminal() {
		sas, req := s.Sas, s.Request
		if sas != nil || req != nil {
			c.spawn(func(ctx context.Context) Event {
				if sas != nil {
					_ = sas.Cancel(ctx)
				} else {
					_ = req.Cancel(ctx)
				}
				return nil
			})
		}
		s.Cancel(s.FlowID, "Verification cancelled")
	}
	c.stopWatch()
}

func (c *Coordinator) dismissVerification() {
	c.stopWatch()
	c.state.Verification = nil
}

// watch runs fn until the verification is dismissed, cancelled or the
// coordinator stops. Events fn emits go through the queue like sync events.
func (c *Coordinator) watch(fn func(ctx context.Context, emit verify.Emit)) {
	c.stopWatch()
	ctx, cancel := context.WithCancel(c.ctx)
	c.verifyCancel = cancel
	emit := func(ev backend.Event) bool {
		return c.queue.Push(ctx, Backend{Event: ev})
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		defer cancel()
		fn(ctx, emit)
	}()
}

func (c *Coordinator) stopWatch() {
	if c.verifyCancel != nil {
		c.verifyCancel()
		c.verifyCancel = nil
	}
}
