// Package app is the coordinator: one loop that owns the application state
// and applies key presses, sync events and task results to it in order.
package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/accounts"
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/outbox"
	"github.com/matheus3301/matrixtui/internal/reconcile"
	"github.com/matheus3301/matrixtui/internal/rooms"
	"github.com/matheus3301/matrixtui/internal/verify"
)

const (
	// HistoryPageSize is the number of messages requested per page.
	HistoryPageSize = 50

	taskTimeout  = time.Minute
	stopTimeout  = 5 * time.Second
	outboxLength = 256
)

// Archive supplies messages persisted by earlier runs.
type Archive interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
}

// Renderer draws a snapshot. It is called from the loop goroutine and must
// not block on it.
type Renderer interface {
	Render(Snapshot)
}

// AppState is everything the loop owns. Nothing outside the loop goroutine
// reads or writes it.
type AppState struct {
	Accounts     *accounts.Registry
	Rooms        *rooms.Cache
	Echoes       *reconcile.Reconciler
	Nav          *nav.State
	Verification *verify.Session
	Status       string
	Theme        string
	Themes       []string
	Sort         rooms.SortMode
	Now          time.Time

	// all is the last room list fetched from every account.
	all []chat.Room
}

// Options configure a Coordinator.
type Options struct {
	Backend   backend.ChatBackend
	Config    *config.Store
	Archive   Archive
	Renderer  Renderer
	Themes    []string
	QueueSize int
	// Tick is the clock interval. Zero disables the clock.
	Tick   time.Duration
	Bus    *bus.Bus
	Logger *zap.Logger
}

// Coordinator runs the event loop.
type Coordinator struct {
	queue    *Queue
	backend  backend.ChatBackend
	config   *config.Store
	archive  Archive
	renderer Renderer
	sender   *outbox.Sender
	bus      *bus.Bus
	logger   *zap.Logger
	tick     time.Duration

	state *AppState

	ctx          context.Context
	stop         context.CancelFunc
	tasks        sync.WaitGroup
	started      bool
	closeOnce    sync.Once
	verifyCancel context.CancelFunc
	promptVerify bool
	refreshing   bool
	refreshAgain bool
}

// New builds a coordinator. Failing to create the queue is the one fatal
// startup error.
func New(opts Options) (*Coordinator, error) {
	size := opts.QueueSize
	if size == 0 {
		size = DefaultQueueSize
	}
	q, err := NewQueue(size)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.Config == nil {
		opts.Config = config.NewMemoryStore(nil, opts.Logger)
	}
	if len(opts.Themes) == 0 {
		opts.Themes = []string{config.DefaultTheme}
	}

	c := &Coordinator{
		queue:    q,
		backend:  opts.Backend,
		config:   opts.Config,
		archive:  opts.Archive,
		renderer: opts.Renderer,
		bus:      opts.Bus,
		logger:   opts.Logger,
		tick:     opts.Tick,
	}
	c.ctx, c.stop = context.WithCancel(context.Background())

	emit := func(ctx context.Context, gen uint64, ev backend.Event) bool {
		return q.Push(ctx, Backend{Event: ev, Gen: gen})
	}
	report := func(ctx context.Context, r outbox.Result) bool {
		return q.Push(ctx, Sent{Result: r})
	}
	c.sender = outbox.NewSender(outboxLength, report, opts.Bus, opts.Logger.Named("outbox"))

	cfg := opts.Config.Config()
	c.state = &AppState{
		Accounts: accounts.NewRegistry(emit, opts.Bus, opts.Logger.Named("accounts")),
		Rooms:    rooms.New(),
		Echoes:   reconcile.New(opts.Logger.Named("reconcile")),
		Nav:      nav.New(),
		Theme:    cfg.Theme,
		Themes:   opts.Themes,
		Sort:     rooms.ParseSortMode(cfg.RoomSort),
		Now:      time.Now(),
	}
	return c, nil
}

// Queue exposes the event queue to producers such as the key reader.
func (c *Coordinator) Queue() *Queue { return c.queue }

// State returns the loop-owned state. Only the loop goroutine and tests
// that drive Dispatch themselves may use it.
func (c *Coordinator) State() *AppState { return c.state }

// Start launches the outbox, the clock and the restore of saved sessions.
func (c *Coordinator) Start() {
	if c.started {
		return
	}
	c.started = true
	c.sender.Start(c.ctx)
	if c.tick > 0 {
		c.tasks.Add(1)
		go c.clock()
	}
	c.restore()
	c.bus.Emit(bus.KindLoopStarted, nil)
}

// Run starts the coordinator and processes events until Quit or ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	stopAfter := context.AfterFunc(ctx, c.stop)
	defer stopAfter()
	defer c.Close()

	c.Start()
	c.render()
	for {
		ev, ok := c.queue.Pop(c.ctx)
		if !ok {
			return ctx.Err()
		}
		if !c.Dispatch(ev) {
			c.logger.Info("quit requested")
			return nil
		}
		c.render()
	}
}

// Stop asks Run to return. Cleanup happens on the loop goroutine.
func (c *Coordinator) Stop() { c.stop() }

// Close stops every background task and sync loop.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.stop()
		c.state.Accounts.StopAll(stopTimeout)
		c.sender.Stop()
		c.tasks.Wait()
		c.bus.Emit(bus.KindLoopStopped, nil)
	})
}

func (c *Coordinator) render() {
	if c.renderer != nil {
		c.renderer.Render(c.Snapshot())
	}
}

func (c *Coordinator) clock() {
	defer c.tasks.Done()
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-t.C:
			c.queue.TryPush(Tick{Now: now})
		}
	}
}

// spawn runs fn off the loop and queues the event it returns.
func (c *Coordinator) spawn(fn func(ctx context.Context) Event) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ctx, cancel := context.WithTimeout(c.ctx, taskTimeout)
		defer cancel()
		if ev := fn(ctx); ev != nil {
			c.queue.Push(c.ctx, ev)
		}
	}()
}

// Dispatch applies one event. It returns false once the user asked to quit.
func (c *Coordinator) Dispatch(ev Event) bool {
	switch ev := ev.(type) {
	case KeyPressed:
		cmd := c.state.Nav.HandleKey(ev.Key, c.env())
		if _, quit := cmd.(nav.Quit); quit {
			return false
		}
		c.execute(cmd)
	case Tick:
		c.state.Now = ev.Now
	case Backend:
		if ev.Gen != 0 && !c.state.Accounts.Current(ev.Gen) {
			c.logger.Debug("dropped event from a stopped sync task", zap.Uint64("gen", ev.Gen))
			break
		}
		c.handleBackend(ev.Event)
	case RestoreDone:
		c.restored(ev.Result)
	case LoginDone:
		c.loggedIn(ev)
	case RoomsLoaded:
		c.roomsLoaded(ev)
	case HistoryLoaded:
		c.historyLoaded(ev)
	case OlderLoaded:
		c.olderLoaded(ev)
	case Sent:
		c.sent(ev.Result)
	case RoomCreated:
		c.roomCreated(ev)
	case RoomEdited:
		c.roomEdited(ev)
	case RoomLeft:
		c.roomLeft(ev)
	case ProfileLoaded:
		c.profileLoaded(ev)
	case ProfileUpdated:
		c.profileUpdated(ev)
	case KeysRecovered:
		c.keysRecovered(ev)
	case RoomInfoLoaded:
		c.roomInfoLoaded(ev)
	case VerificationStarted:
		c.verificationStarted(ev)
	case VerificationAttached:
		if s := c.state.Verification; s.Applies(ev.FlowID) {
			s.Request = ev.Request
		}
	}

	if c.promptVerify && c.state.Nav.Overlay() == nav.OverlayNone {
		c.promptVerify = false
		if s := c.state.Verification; s != nil && !s.Terminal() {
			c.state.Nav.OpenVerification(s.Account)
		}
	}
	return true
}

// fail reports a task error on the overlay that started it, or on the
// status line once that overlay is gone.
func (c *Coordinator) fail(t Task, err error) {
	c.logger.Warn("task failed",
		zap.String("op", t.Op),
		zap.String("account", t.Account),
		zap.String("room", t.Room),
		zap.Error(err))
	msg := backend.Message(err)
	if t.Gen != 0 {
		if f := c.state.Nav.Form(t.Gen); f != nil {
			f.Fail(msg)
			return
		}
	}
	c.state.Status = t.Op + " failed: " + msg
}

// done clears the busy flag of the overlay that started t.
func (c *Coordinator) done(t Task) {
	if f := c.state.Nav.Form(t.Gen); t.Gen != 0 && f != nil {
		f.Done()
	}
}

func (c *Coordinator) env() nav.Env {
	st := c.state
	env := nav.Env{
		ActiveAccount:   st.Nav.AccountCursor,
		SelectedRoom:    st.Rooms.Selected(),
		FavoritesCount:  st.Rooms.FavoritesCount(),
		MessageSelected: st.Rooms.SelectedMessage() >= 0,
		Themes:          st.Themes,
		Theme:           max(slices.Index(st.Themes, st.Theme), 0),
		Sort:            int(st.Sort),
		Verification:    st.Verification,
	}
	env.ActiveRoomID, _ = st.Rooms.Active()
	for _, a := range st.Accounts.Accounts() {
		env.Accounts = append(env.Accounts, a.ID)
	}
	if r, ok := st.Rooms.SelectedRoom(); ok {
		if i := slices.Index(env.Accounts, r.AccountID); i >= 0 {
			env.ActiveAccount = i
		}
	}
	for _, r := range st.Rooms.Rooms() {
		env.Rooms = append(env.Rooms, r.Label())
	}
	for _, m := range rooms.SortModes() {
		env.SortModes = append(env.SortModes, m.Label())
	}
	return env
}

// account resolves the client for id or reports a NotFoundError.
func (c *Coordinator) account(id string) (*accounts.Account, error) {
	a, ok := c.state.Accounts.Get(id)
	if !ok {
		return nil, &backend.NotFoundError{Kind: "account", ID: id}
	}
	return a, nil
}
