package matrix

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// maxSyncFailures is how many requests in a row may fail before the sync
// loop gives up and reports the account as failed.
const maxSyncFailures = 5

// syncer retries failed syncs a bounded number of times. Auth failures
// stop the loop at once.
type syncer struct {
	*mautrix.DefaultSyncer
	logger   *zap.Logger
	failures int
}

func (s *syncer) ProcessResponse(ctx context.Context, resp *mautrix.RespSync, since string) error {
	s.failures = 0
	return s.DefaultSyncer.ProcessResponse(ctx, resp, since)
}

func (s *syncer) OnFailedSync(_ *mautrix.RespSync, err error) (time.Duration, error) {
	if errors.Is(err, mautrix.MUnknownToken) || errors.Is(err, mautrix.MForbidden) {
		return 0, authError("sync", err)
	}
	s.failures++
	if s.failures >= maxSyncFailures {
		return 0, cleanErr(err)
	}
	backoff := time.Duration(s.failures) * 2 * time.Second
	s.logger.Warn("sync request failed", zap.Int("attempt", s.failures), zap.Duration("retry_in", backoff), zap.Error(err))
	return backoff, nil
}

// batchStore reports every stored sync token, which happens after all
// events of that response were dispatched.
type batchStore struct {
	mautrix.SyncStore
	saved func()
}

func (s *batchStore) SaveNextBatch(ctx context.Context, userID id.UserID, token string) error {
	err := s.SyncStore.SaveNextBatch(ctx, userID, token)
	s.saved()
	return err
}

func (c *Client) registerHandlers() {
	s := &syncer{DefaultSyncer: mautrix.NewDefaultSyncer(), logger: c.logger}
	c.cli.Syncer = s
	s.OnEvent(c.cli.StateStoreSyncHandler)
	s.OnSync(c.onSync)
	s.OnEventType(event.EventMessage, c.onMessage)
	s.OnEventType(event.EventEncrypted, c.onEncrypted)
	s.OnEventType(event.EventReaction, c.onReaction)
	s.OnEventType(event.EventRedaction, c.onRedaction)
	s.OnEventType(event.EphemeralEventTyping, c.onTyping)
}

// Sync runs the sync loop until ctx ends, the receiver goes away or the
// loop fails.
func (c *Client) Sync(ctx context.Context, sink backend.Sink) error {
	c.setSink(sink)
	defer c.setSink(nil)
	c.logger.Info("sync starting")
	err := c.cli.SyncWithContext(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		c.logger.Warn("sync stopped", zap.Error(err))
		return err
	}
	return nil
}

func (c *Client) setSink(sink backend.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// emit hands ev to the current sink and stops syncing when nobody listens.
func (c *Client) emit(ev backend.Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return
	}
	if !sink(ev) {
		c.cli.StopSync()
	}
}

func (c *Client) onSync(_ context.Context, resp *mautrix.RespSync, _ string) bool {
	if c.rooms.apply(resp) {
		c.emit(backend.RoomListChanged{Account: c.UserID()})
	}
	return true
}

func (c *Client) syncCompleted() {
	c.emit(backend.SyncCompleted{Account: c.UserID()})
}

func (c *Client) onMessage(_ context.Context, evt *event.Event) {
	if m, ok := parseMessage(c.UserID(), evt); ok {
		c.emit(m)
	}
}

// onEncrypted shows undecryptable messages. With encryption enabled the
// crypto helper decrypts and redispatches them as messages instead.
func (c *Client) onEncrypted(ctx context.Context, evt *event.Event) {
	if c.crypto != nil {
		return
	}
	c.onMessage(ctx, evt)
}

func (c *Client) onReaction(_ context.Context, evt *event.Event) {
	if r, ok := parseReaction(c.UserID(), evt); ok {
		c.emit(r)
	}
}

func (c *Client) onRedaction(_ context.Context, evt *event.Event) {
	if r, ok := parseRedaction(c.UserID(), evt); ok {
		c.emit(r)
	}
}

func (c *Client) onTyping(_ context.Context, evt *event.Event) {
	if t, ok := parseTyping(c.UserID(), evt.RoomID, evt); ok {
		c.emit(t)
	}
}
