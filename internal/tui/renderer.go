// Package tui draws coordinator snapshots with tview and feeds terminal
// keys back into the coordinator queue.
package tui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
	"github.com/matheus3301/matrixtui/internal/tui/views"
)

const overlayPage = "overlay"

// KeySink receives key presses. *app.Queue satisfies it.
type KeySink interface {
	TryPush(ev app.Event) bool
}

// Renderer implements app.Renderer. Render only stores the snapshot; a
// separate goroutine hands the newest one to the tview event loop, so
// snapshots produced faster than the terminal can draw are coalesced.
type Renderer struct {
	app    *tview.Application
	logger *zap.Logger

	pages    *tview.Pages
	accounts *ui.AccountBar
	rooms    *views.RoomList
	messages *views.MessageView
	composer *views.Composer
	menu     *ui.Menu
	flash    *ui.FlashBar
	overlay  *tview.TextView

	mu     sync.Mutex
	latest *app.Snapshot
	sink   KeySink
	signal chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New builds the layout. screen may be nil to use the real terminal.
func New(screen tcell.Screen, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		app:      tview.NewApplication(),
		logger:   logger,
		pages:    tview.NewPages(),
		accounts: ui.NewAccountBar(),
		rooms:    views.NewRoomList(),
		messages: views.NewMessageView(),
		composer: views.NewComposer(),
		menu:     ui.NewMenu(),
		flash:    ui.NewFlashBar(),
		overlay:  tview.NewTextView().SetDynamicColors(true).SetWordWrap(true),
		signal:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	if screen != nil {
		r.app.SetScreen(screen)
	}
	r.overlay.SetBorder(true).SetBorderPadding(0, 0, 1, 1)

	chat := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(r.messages, 0, 1, false).
		AddItem(r.composer, 3, 0, false)
	body := tview.NewFlex().
		AddItem(r.rooms, 32, 0, false).
		AddItem(chat, 0, 1, false)
	main := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(r.accounts, 1, 0, false).
		AddItem(body, 0, 1, false).
		AddItem(r.flash, 1, 0, false).
		AddItem(r.menu, 1, 0, false)

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(r.overlay, 0, 4, false).
			AddItem(nil, 0, 1, false), 0, 2, false).
		AddItem(nil, 0, 1, false)

	r.pages.AddPage("main", main, true, true)
	r.pages.AddPage(overlayPage, modal, true, false)
	r.app.SetRoot(r.pages, true)
	r.app.SetInputCapture(r.capture)
	return r
}

// Attach sets where key presses go.
func (r *Renderer) Attach(sink KeySink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// capture forwards every key to the coordinator. Widgets never see keys;
// all input state lives in the navigation layer.
func (r *Renderer) capture(ev *tcell.EventKey) *tcell.EventKey {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil && !sink.TryPush(app.KeyPressed{Key: ev}) {
		r.logger.Warn("dropped key press, queue full")
	}
	return nil
}

// Render stores snap for the next frame.
func (r *Renderer) Render(snap app.Snapshot) {
	r.mu.Lock()
	r.latest = &snap
	r.mu.Unlock()
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Start runs the terminal in the background. done is called when the
// terminal loop exits on its own, for example after a fatal screen error.
func (r *Renderer) Start(done func(error)) {
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		err := r.app.Run()
		select {
		case <-r.quit:
		default:
			if done != nil {
				done(err)
			}
		}
	}()
	go r.forward()
}

// Stop restores the terminal.
func (r *Renderer) Stop() {
	r.once.Do(func() {
		close(r.quit)
		r.app.Stop()
	})
	r.wg.Wait()
}

func (r *Renderer) forward() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case <-r.signal:
		}
		r.mu.Lock()
		snap := r.latest
		r.latest = nil
		r.mu.Unlock()
		if snap != nil {
			r.app.QueueUpdateDraw(func() { r.draw(snap) })
		}
	}
}

// draw runs on the tview goroutine.
func (r *Renderer) draw(snap *app.Snapshot) {
	theme := ui.LookupTheme(snap.Theme)
	overlayOpen := snap.Nav.Overlay != nav.OverlayNone

	r.accounts.Update(theme, views.Crumbs(snap))
	r.rooms.Update(theme, snap, !overlayOpen && snap.Nav.Focus == nav.FocusRooms)
	r.messages.Update(theme, snap, !overlayOpen && snap.Nav.Focus == nav.FocusChat)
	r.composer.Update(theme, snap)
	level, text, right := views.StatusLine(snap)
	r.flash.Update(theme, level, text, right)
	r.menu.Update(theme, views.Hints(snap))

	title, body, ok := views.Overlay(theme, snap)
	if !ok {
		r.pages.HidePage(overlayPage)
		return
	}
	r.overlay.SetBackgroundColor(theme.BgColor)
	r.overlay.SetTextColor(theme.FgColor)
	r.overlay.SetBorderColor(theme.BorderFocusColor)
	r.overlay.SetTitleColor(theme.TitleColor)
	r.overlay.SetTitle(" " + title + " ")
	r.overlay.Clear()
	r.overlay.SetText(body)
	r.overlay.ScrollToBeginning()
	r.pages.ShowPage(overlayPage)
}
