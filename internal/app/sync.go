package app

import (
	"slices"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/reconcile"
)

// handleBackend applies an event from a sync loop or verification watcher.
// Events naming an account that is no longer registered, or a room that was
// left or deleted, are dropped.
func (c *Coordinator) handleBackend(ev backend.Event) {
	st := c.state
	known := st.Accounts.IsLocal

	switch ev := ev.(type) {
	case backend.MessageReceived:
		if !known(ev.Account) || st.Rooms.Removed(ev.RoomID) {
			return
		}
		out := st.Echoes.Receive(st.Rooms, ev, known)
		if out != reconcile.Duplicate {
			c.bus.Emit(bus.KindMessageReceived, ev)
		}
		c.logger.Debug("message", zap.String("room", ev.RoomID), zap.Stringer("outcome", out))
	case backend.ReactionReceived:
		if known(ev.Account) && !st.Rooms.Removed(ev.RoomID) {
			st.Echoes.React(st.Rooms, ev)
		}
	case backend.MessageRedacted:
		if known(ev.Account) && !st.Rooms.Removed(ev.RoomID) && st.Echoes.Redact(st.Rooms, ev.RoomID, ev.EventID) {
			c.bus.Emit(bus.KindMessageRedacted, ev)
		}
	case backend.TypingChanged:
		if !known(ev.Account) {
			return
		}
		users := slices.DeleteFunc(slices.Clone(ev.UserIDs), known)
		st.Rooms.SetTyping(ev.RoomID, users)
	case backend.RoomListChanged:
		if known(ev.Account) {
			c.refreshRooms()
		}
	case backend.SyncCompleted:
		a, ok := st.Accounts.Get(ev.Account)
		if !ok {
			return
		}
		first := !a.Synced()
		st.Accounts.MarkSynced(ev.Account)
		st.Status = st.Accounts.StatusLine()
		if first {
			c.refreshRooms()
		}
	case backend.SyncFailed:
		if st.Accounts.MarkFailed(ev.Account, ev.Err) {
			c.logger.Warn("sync failed", zap.String("account", ev.Account), zap.Error(ev.Err))
			st.Status = st.Accounts.StatusLine()
		}
	case backend.VerificationRequestReceived:
		if known(ev.Account) {
			c.incomingVerification(ev)
		}
	case backend.SasStarted:
		if s := st.Verification; s.Applies(ev.FlowID) {
			s.StartSas(ev.FlowID, ev.Sas)
		}
	case backend.SasEmojisReady:
		if s := st.Verification; s.Applies(ev.FlowID) {
			s.ShowEmojis(ev.FlowID, ev.Emojis)
		}
	case backend.SasDone:
		if s := st.Verification; s.Applies(ev.FlowID) && s.Finish(ev.FlowID) {
			c.logger.Info("device verified", zap.String("account", s.Account), zap.String("flow", ev.FlowID))
			st.Status = "Session verified"
		}
	case backend.SasCancelled:
		if s := st.Verification; s.Applies(ev.FlowID) {
			s.Cancel(ev.FlowID, ev.Reason)
			c.logger.Info("verification cancelled", zap.String("flow", ev.FlowID), zap.String("reason", ev.Reason))
		}
	}
}
