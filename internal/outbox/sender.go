// Package outbox delivers outgoing messages, reactions and edits off the
// coordinator loop, one at a time and in submission order.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// Kind is the type of an outgoing operation.
type Kind int

const (
	KindText Kind = iota
	KindReply
	KindReaction
	KindEdit
	KindRedact
	KindTyping
	KindReadReceipt
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReply:
		return "reply"
	case KindReaction:
		return "reaction"
	case KindEdit:
		return "edit"
	case KindRedact:
		return "redact"
	case KindTyping:
		return "typing"
	case KindReadReceipt:
		return "read_receipt"
	}
	return "unknown"
}

// ErrQueueFull is reported when a job cannot be queued.
var ErrQueueFull = errors.New("outbox is full, try again")

// Job is one outgoing operation. Target is the event a reply, reaction,
// edit or redaction refers to.
type Job struct {
	Kind    Kind
	Client  backend.Client
	RoomID  string
	Body    string
	TxnID   string
	Target  string
	Reply   *chat.ReplyRef
	Typing  bool
	Gen     uint64
	Created time.Time
}

// Account returns the user id of the sending account.
func (j Job) Account() string {
	if j.Client == nil {
		return ""
	}
	return j.Client.UserID()
}

// Result reports a finished job. EventID is set for text and reply sends.
type Result struct {
	Job     Job
	EventID string
	Err     error
}

// Reporter hands results back to the coordinator. It returns false when
// the result could not be delivered before ctx ended.
type Reporter func(ctx context.Context, r Result) bool

// Sent is the bus payload for delivered messages.
type Sent struct {
	Account   string
	RoomID    string
	EventID   string
	Body      string
	Timestamp time.Time
}

// NewTxnID returns a client transaction id for a send.
func NewTxnID() string {
	return "mtui-" + uuid.NewString()
}

// Sender drains queued jobs on a single goroutine.
type Sender struct {
	jobs    chan Job
	report  Reporter
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates a sender with room for size pending jobs.
func NewSender(size int, report Reporter, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		jobs:    make(chan Job, size),
		report:  report,
		bus:     b,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Start begins delivering queued jobs.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the sender and waits for the job in progress.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Submit queues a job without blocking. A full queue fails the job.
func (s *Sender) Submit(job Job) error {
	if job.Created.IsZero() {
		job.Created = time.Now()
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		s.logger.Warn("outbox full", zap.Stringer("kind", job.Kind), zap.String("room", job.RoomID))
		return ErrQueueFull
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			s.process(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) process(ctx context.Context, job Job) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	eventID, err := s.deliver(callCtx, job)
	cancel()

	if err != nil {
		err = backend.Wrap("send "+job.Kind.String(), err)
		s.logger.Warn("outgoing job failed",
			zap.Stringer("kind", job.Kind),
			zap.String("account", job.Account()),
			zap.String("room", job.RoomID),
			zap.Error(err))
	} else if job.Kind == KindText || job.Kind == KindReply {
		s.logger.Info("message sent",
			zap.String("room", job.RoomID),
			zap.String("txn_id", job.TxnID),
			zap.String("event_id", eventID))
		s.bus.Emit(bus.KindMessageSent, Sent{
			Account:   job.Account(),
			RoomID:    job.RoomID,
			EventID:   eventID,
			Body:      job.Body,
			Timestamp: job.Created,
		})
	}

	// Typing notices and receipts are fire-and-forget.
	if job.Kind == KindTyping || job.Kind == KindReadReceipt {
		return
	}
	s.report(ctx, Result{Job: job, EventID: eventID, Err: err})
}

func (s *Sender) deliver(ctx context.Context, job Job) (string, error) {
	c := job.Client
	switch job.Kind {
	case KindText:
		return c.SendText(ctx, job.RoomID, job.Body, job.TxnID)
	case KindReply:
		return c.SendReply(ctx, job.RoomID, job.Body, *job.Reply, job.TxnID)
	case KindReaction:
		return "", c.SendReaction(ctx, job.RoomID, job.Target, job.Body)
	case KindEdit:
		return "", c.EditMessage(ctx, job.RoomID, job.Target, job.Body)
	case KindRedact:
		return "", c.Redact(ctx, job.RoomID, job.Target)
	case KindTyping:
		return "", c.SendTyping(ctx, job.RoomID, job.Typing)
	case KindReadReceipt:
		return "", c.MarkRead(ctx, job.RoomID, job.Target)
	}
	return "", errors.New("unknown outbox job")
}
