// Package backendtest provides an in-memory ChatBackend for tests.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// Backend hands out fake clients keyed by user id.
type Backend struct {
	mu         sync.Mutex
	clients    map[string]*Client
	LoginErr   error
	RestoreErr map[string]error
	logins     int
}

// New creates an empty fake backend.
func New() *Backend {
	return &Backend{clients: make(map[string]*Client), RestoreErr: make(map[string]error)}
}

// Client returns (creating if needed) the fake for userID.
func (b *Backend) Client(userID, homeserver string) *Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[userID]; ok {
		return c
	}
	c := NewClient(userID, homeserver)
	b.clients[userID] = c
	return c
}

// Logins counts successful Login calls.
func (b *Backend) Logins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logins
}

func (b *Backend) Login(ctx context.Context, homeserver, user, password string) (backend.Client, backend.Credentials, error) {
	if b.LoginErr != nil {
		return nil, backend.Credentials{}, b.LoginErr
	}
	if password == "" {
		return nil, backend.Credentials{}, &backend.AuthError{Op: "login", Reason: "invalid password"}
	}
	userID := user
	if !strings.HasPrefix(userID, "@") {
		host := strings.TrimPrefix(strings.TrimPrefix(homeserver, "https://"), "http://")
		userID = "@" + user + ":" + strings.TrimSuffix(host, "/")
	}
	c := b.Client(userID, homeserver)
	b.mu.Lock()
	b.logins++
	b.mu.Unlock()
	return c, backend.Credentials{
		Homeserver:  homeserver,
		UserID:      userID,
		AccessToken: "token-" + userID,
		DeviceID:    "DEVICE",
	}, nil
}

func (b *Backend) Restore(ctx context.Context, creds backend.Credentials) (backend.Client, error) {
	b.mu.Lock()
	err := b.RestoreErr[creds.UserID]
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.Client(creds.UserID, creds.Homeserver), nil
}

// Sent records an outgoing call.
type Sent struct {
	Kind   string
	RoomID string
	Body   string
	TxnID  string
	Target string
}

// Client is a scriptable backend.Client.
type Client struct {
	mu         sync.Mutex
	userID     string
	homeserver string
	rooms      []chat.Room
	history    map[string]backend.HistoryPage
	details    map[string]backend.RoomDetails
	sent       []Sent
	fetches    []string
	nextID     int
	request    *Request
	events     chan backend.Event
	running    atomic.Int32
	starts     atomic.Int32
	closed     atomic.Bool

	SendErr    error
	RoomsErr   error
	HistoryErr error
	SyncErr    error
	RoomErr    error
}

// NewClient creates a fake client.
func NewClient(userID, homeserver string) *Client {
	return &Client{
		userID:     userID,
		homeserver: homeserver,
		history:    make(map[string]backend.HistoryPage),
		details:    make(map[string]backend.RoomDetails),
		events:     make(chan backend.Event, 64),
	}
}

// SetRooms replaces the joined room list. AccountID is filled in.
func (c *Client) SetRooms(rooms ...chat.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = c.rooms[:0]
	for _, r := range rooms {
		r.AccountID = c.userID
		c.rooms = append(c.rooms, r)
	}
}

// SetHistory scripts the page returned for (roomID, from).
func (c *Client) SetHistory(roomID, from string, page backend.HistoryPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[roomID+"|"+from] = page
}

// SetDetails scripts RoomDetails.
func (c *Client) SetDetails(d backend.RoomDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[d.ID] = d
}

// SetRequest scripts the request returned by verification calls.
func (c *Client) SetRequest(r *Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.request = r
}

// Push queues an event for the running sync loop.
func (c *Client) Push(ev backend.Event) { c.events <- ev }

// Syncing reports how many sync loops are running.
func (c *Client) Syncing() int { return int(c.running.Load()) }

// SyncStarts counts Sync calls since creation.
func (c *Client) SyncStarts() int { return int(c.starts.Load()) }

// Closed reports whether Close was called.
func (c *Client) Closed() bool { return c.closed.Load() }

// Sent returns recorded outgoing calls.
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

// Fetches returns the from-tokens passed to FetchHistory.
func (c *Client) Fetches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.fetches)
}

func (c *Client) record(s Sent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.sent = append(c.sent, s)
	c.nextID++
	return fmt.Sprintf("$%s-%d", s.Kind, c.nextID), nil
}

func (c *Client) roomOp(kind, roomID, arg string) error {
	c.mu.Lock()
	err := c.RoomErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = c.record(Sent{Kind: kind, RoomID: roomID, Body: arg})
	return err
}

func (c *Client) UserID() string     { return c.userID }
func (c *Client) Homeserver() string { return c.homeserver }

func (c *Client) Rooms(ctx context.Context) ([]chat.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RoomsErr != nil {
		return nil, c.RoomsErr
	}
	return slices.Clone(c.rooms), nil
}

func (c *Client) RoomDetails(ctx context.Context, roomID string) (backend.RoomDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.details[roomID]
	if !ok {
		return backend.RoomDetails{}, &backend.NotFoundError{Kind: "room", ID: roomID}
	}
	return d, nil
}

func (c *Client) FetchHistory(ctx context.Context, roomID, from string, limit int) (backend.HistoryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches = append(c.fetches, from)
	if c.HistoryErr != nil {
		return backend.HistoryPage{}, c.HistoryErr
	}
	page := c.history[roomID+"|"+from]
	page.Messages = chat.CloneAll(page.Messages)
	return page, nil
}

func (c *Client) SendText(ctx context.Context, roomID, body, txnID string) (string, error) {
	return c.record(Sent{Kind: "text", RoomID: roomID, Body: body, TxnID: txnID})
}

func (c *Client) SendReply(ctx context.Context, roomID, body string, to chat.ReplyRef, txnID string) (string, error) {
	return c.record(Sent{Kind: "reply", RoomID: roomID, Body: body, TxnID: txnID, Target: to.EventID})
}

func (c *Client) SendReaction(ctx context.Context, roomID, eventID, key string) error {
	_, err := c.record(Sent{Kind: "reaction", RoomID: roomID, Body: key, Target: eventID})
	return err
}

func (c *Client) EditMessage(ctx context.Context, roomID, eventID, body string) error {
	_, err := c.record(Sent{Kind: "edit", RoomID: roomID, Body: body, Target: eventID})
	return err
}

func (c *Client) Redact(ctx context.Context, roomID, eventID string) error {
	_, err := c.record(Sent{Kind: "redact", RoomID: roomID, Target: eventID})
	return err
}

func (c *Client) SendTyping(ctx context.Context, roomID string, typing bool) error {
	_, err := c.record(Sent{Kind: "typing", RoomID: roomID, Body: fmt.Sprint(typing)})
	return err
}

func (c *Client) MarkRead(ctx context.Context, roomID, eventID string) error {
	_, err := c.record(Sent{Kind: "receipt", RoomID: roomID, Target: eventID})
	return err
}

func (c *Client) DisplayName(ctx context.Context) (string, error) {
	return strings.TrimPrefix(strings.SplitN(c.userID, ":", 2)[0], "@"), nil
}

func (c *Client) SetDisplayName(ctx context.Context, name string) error {
	return c.roomOp("displayname", "", name)
}

func (c *Client) SetAvatarURL(ctx context.Context, url string) error {
	return c.roomOp("avatar", "", url)
}

func (c *Client) UploadAvatar(ctx context.Context, path string) (string, error) {
	if err := c.roomOp("upload", "", path); err != nil {
		return "", err
	}
	return "mxc://fake/" + path, nil
}

func (c *Client) CreateRoom(ctx context.Context, req backend.CreateRoomRequest) (string, error) {
	if err := c.roomOp("create", "", req.Name); err != nil {
		return "", err
	}
	return "!" + strings.ToLower(strings.ReplaceAll(req.Name, " ", "-")) + ":fake", nil
}

func (c *Client) SetRoomName(ctx context.Context, roomID, name string) error {
	return c.roomOp("name", roomID, name)
}

func (c *Client) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	return c.roomOp("topic", roomID, topic)
}

func (c *Client) Invite(ctx context.Context, roomID, userID string) error {
	return c.roomOp("invite", roomID, userID)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if err := c.roomOp("leave", roomID, ""); err != nil {
		return err
	}
	c.dropRoom(roomID)
	return nil
}

func (c *Client) ForgetRoom(ctx context.Context, roomID string) error {
	return c.roomOp("forget", roomID, "")
}

func (c *Client) dropRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = slices.DeleteFunc(c.rooms, func(r chat.Room) bool { return r.ID == roomID })
}

func (c *Client) RecoverKeys(ctx context.Context, key string) error {
	if key == "bad" {
		return errors.New("invalid recovery key")
	}
	return c.roomOp("recover", "", key)
}

func (c *Client) RequestVerification(ctx context.Context) (backend.VerificationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.request == nil {
		return nil, backend.ErrUnsupported
	}
	return c.request, nil
}

func (c *Client) IncomingVerification(ctx context.Context, userID, flowID string) (backend.VerificationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.request == nil || c.request.FlowID() != flowID {
		return nil, &backend.NotFoundError{Kind: "verification", ID: flowID}
	}
	return c.request, nil
}

func (c *Client) Sync(ctx context.Context, sink backend.Sink) error {
	c.starts.Add(1)
	c.running.Add(1)
	defer c.running.Add(-1)
	c.mu.Lock()
	err := c.SyncErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			if !sink(ev) {
				return nil
			}
		}
	}
}

func (c *Client) Close() { c.closed.Store(true) }
