package matrix

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// typingTimeout is how long the server shows us as typing without a
// refresh.
const typingTimeout = 30 * time.Second

// Client is one logged-in Matrix account.
type Client struct {
	cli    *mautrix.Client
	rooms  *roomTracker
	logger *zap.Logger

	mu   sync.Mutex
	sink backend.Sink

	crypto   *cryptohelper.CryptoHelper
	verifier *verifier
}

var _ backend.Client = (*Client)(nil)

func newClient(cli *mautrix.Client, logger *zap.Logger) *Client {
	c := &Client{
		cli:    cli,
		rooms:  newRoomTracker(cli.UserID.String()),
		logger: logger,
	}
	cli.StateStore = mautrix.NewMemoryStateStore()
	cli.Store = &batchStore{SyncStore: mautrix.NewMemorySyncStore(), saved: c.syncCompleted}
	c.registerHandlers()
	return c
}

func (c *Client) UserID() string     { return c.cli.UserID.String() }
func (c *Client) Homeserver() string { return c.cli.HomeserverURL.String() }

// Rooms lists joined rooms. Before the first sync it asks the server.
func (c *Client) Rooms(ctx context.Context) ([]chat.Room, error) {
	if rooms, ok := c.rooms.list(); ok {
		return rooms, nil
	}
	resp, err := c.cli.JoinedRooms(ctx)
	if err != nil {
		return nil, cleanErr(err)
	}
	rooms := make([]chat.Room, 0, len(resp.JoinedRooms))
	for _, roomID := range resp.JoinedRooms {
		var name event.RoomNameEventContent
		if err := c.cli.StateEvent(ctx, roomID, event.StateRoomName, "", &name); err != nil && !errors.Is(err, mautrix.MNotFound) {
			c.logger.Debug("room name lookup failed", zap.Stringer("room", roomID), zap.Error(err))
		}
		rooms = append(rooms, chat.Room{ID: roomID.String(), AccountID: c.UserID(), Name: name.Name})
	}
	return rooms, nil
}

// RoomDetails loads what the room info overlay shows.
func (c *Client) RoomDetails(ctx context.Context, roomID string) (backend.RoomDetails, error) {
	rid := id.RoomID(roomID)
	d := backend.RoomDetails{ID: roomID}
	if info, ok := c.rooms.info(roomID); ok {
		d.Name, d.Topic, d.Alias = info.name, info.topic, info.alias
		d.Members, d.Encrypted = info.members, info.crypto
	} else {
		var name event.RoomNameEventContent
		if err := c.cli.StateEvent(ctx, rid, event.StateRoomName, "", &name); err != nil && !errors.Is(err, mautrix.MNotFound) {
			return d, cleanErr(err)
		}
		var topic event.TopicEventContent
		if err := c.cli.StateEvent(ctx, rid, event.StateTopic, "", &topic); err != nil && !errors.Is(err, mautrix.MNotFound) {
			return d, cleanErr(err)
		}
		d.Name, d.Topic = name.Name, topic.Topic
	}
	if d.Members == 0 {
		members, err := c.cli.JoinedMembers(ctx, rid)
		if err != nil {
			return d, cleanErr(err)
		}
		d.Members = len(members.Joined)
	}
	if rooms, ok := c.rooms.list(); ok {
		for _, r := range rooms {
			if r.ID == roomID {
				d.IsDM = r.IsDM
			}
		}
	}
	return d, nil
}

// FetchHistory pages backwards from the token, or from the newest event
// when from is empty.
func (c *Client) FetchHistory(ctx context.Context, roomID, from string, limit int) (backend.HistoryPage, error) {
	resp, err := c.cli.Messages(ctx, id.RoomID(roomID), from, "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return backend.HistoryPage{}, cleanErr(err)
	}
	if c.crypto != nil {
		for i, evt := range resp.Chunk {
			if evt.Type.Type != event.EventEncrypted.Type {
				continue
			}
			evt.RoomID = id.RoomID(roomID)
			ensureParsed(evt)
			if dec, err := c.crypto.Decrypt(ctx, evt); err == nil {
				resp.Chunk[i] = dec
			}
		}
	}
	page := backend.HistoryPage{Messages: buildPage(c.UserID(), resp.Chunk)}
	if len(resp.Chunk) > 0 && resp.End != from {
		page.Next = resp.End
	}
	return page, nil
}

func (c *Client) send(ctx context.Context, roomID string, content *event.MessageEventContent, txnID string) (string, error) {
	var extra []mautrix.ReqSendEvent
	if txnID != "" {
		extra = append(extra, mautrix.ReqSendEvent{TransactionID: txnID})
	}
	resp, err := c.cli.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content, extra...)
	if err != nil {
		return "", cleanErr(err)
	}
	return resp.EventID.String(), nil
}

func (c *Client) SendText(ctx context.Context, roomID, body, txnID string) (string, error) {
	return c.send(ctx, roomID, &event.MessageEventContent{MsgType: event.MsgText, Body: body}, txnID)
}

// SendReply sends body as a reply. The quoted fallback is included so
// clients without reply support still show the context.
func (c *Client) SendReply(ctx context.Context, roomID, body string, to chat.ReplyRef, txnID string) (string, error) {
	content := &event.MessageEventContent{
		MsgType:   event.MsgText,
		Body:      replyFallback(to, body),
		RelatesTo: (&event.RelatesTo{}).SetReplyTo(id.EventID(to.EventID)),
	}
	return c.send(ctx, roomID, content, txnID)
}

func replyFallback(to chat.ReplyRef, body string) string {
	if to.Sender == "" {
		return body
	}
	return fmt.Sprintf("> <%s> %s\n\n%s", to.Sender, to.Snippet, body)
}

func (c *Client) SendReaction(ctx context.Context, roomID, eventID, key string) error {
	_, err := c.cli.SendReaction(ctx, id.RoomID(roomID), id.EventID(eventID), key)
	return cleanErr(err)
}

func (c *Client) EditMessage(ctx context.Context, roomID, eventID, body string) error {
	content := &event.MessageEventContent{
		MsgType:    event.MsgText,
		Body:       "* " + body,
		NewContent: &event.MessageEventContent{MsgType: event.MsgText, Body: body},
		RelatesTo:  (&event.RelatesTo{}).SetReplace(id.EventID(eventID)),
	}
	_, err := c.send(ctx, roomID, content, "")
	return err
}

func (c *Client) Redact(ctx context.Context, roomID, eventID string) error {
	_, err := c.cli.RedactEvent(ctx, id.RoomID(roomID), id.EventID(eventID))
	return cleanErr(err)
}

func (c *Client) SendTyping(ctx context.Context, roomID string, typing bool) error {
	_, err := c.cli.UserTyping(ctx, id.RoomID(roomID), typing, typingTimeout)
	return cleanErr(err)
}

func (c *Client) MarkRead(ctx context.Context, roomID, eventID string) error {
	return cleanErr(c.cli.MarkRead(ctx, id.RoomID(roomID), id.EventID(eventID)))
}

func (c *Client) DisplayName(ctx context.Context) (string, error) {
	resp, err := c.cli.GetOwnDisplayName(ctx)
	if err != nil {
		return "", cleanErr(err)
	}
	return resp.DisplayName, nil
}

func (c *Client) SetDisplayName(ctx context.Context, name string) error {
	return cleanErr(c.cli.SetDisplayName(ctx, name))
}

// SetAvatarURL sets the avatar to an mxc:// URI.
func (c *Client) SetAvatarURL(ctx context.Context, url string) error {
	uri, err := id.ParseContentURI(url)
	if err != nil {
		return &backend.ValidationError{Field: "avatar", Message: "Avatar must be an mxc:// URL"}
	}
	return cleanErr(c.cli.SetAvatarURL(ctx, uri))
}

// UploadAvatar uploads a local image and returns its mxc:// URI.
func (c *Client) UploadAvatar(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &backend.ValidationError{Field: "avatar", Message: fmt.Sprintf("Cannot read %s", path)}
	}
	resp, err := c.cli.UploadBytes(ctx, data, http.DetectContentType(data))
	if err != nil {
		return "", cleanErr(err)
	}
	return resp.ContentURI.String(), nil
}

func (c *Client) CreateRoom(ctx context.Context, req backend.CreateRoomRequest) (string, error) {
	create := &mautrix.ReqCreateRoom{
		Name:            req.Name,
		Topic:           req.Topic,
		Visibility:      "private",
		Preset:          "private_chat",
		CreationContent: map[string]any{"m.federate": req.Federated},
	}
	if req.Public {
		create.Visibility = "public"
		create.Preset = "public_chat"
	}
	for _, u := range req.Invites {
		create.Invite = append(create.Invite, id.UserID(u))
	}
	if req.Encrypted {
		create.InitialState = append(create.InitialState, &event.Event{
			Type:    event.StateEncryption,
			Content: event.Content{Parsed: &event.EncryptionEventContent{Algorithm: id.AlgorithmMegolmV1}},
		})
	}
	resp, err := c.cli.CreateRoom(ctx, create)
	if err != nil {
		return "", cleanErr(err)
	}
	return resp.RoomID.String(), nil
}

func (c *Client) SetRoomName(ctx context.Context, roomID, name string) error {
	_, err := c.cli.SendStateEvent(ctx, id.RoomID(roomID), event.StateRoomName, "", &event.RoomNameEventContent{Name: name})
	return cleanErr(err)
}

func (c *Client) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	_, err := c.cli.SendStateEvent(ctx, id.RoomID(roomID), event.StateTopic, "", &event.TopicEventContent{Topic: topic})
	return cleanErr(err)
}

func (c *Client) Invite(ctx context.Context, roomID, userID string) error {
	_, err := c.cli.InviteUser(ctx, id.RoomID(roomID), &mautrix.ReqInviteUser{UserID: id.UserID(userID)})
	return cleanErr(err)
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if _, err := c.cli.LeaveRoom(ctx, id.RoomID(roomID)); err != nil {
		return cleanErr(err)
	}
	c.rooms.forget(roomID)
	return nil
}

func (c *Client) ForgetRoom(ctx context.Context, roomID string) error {
	_, err := c.cli.ForgetRoom(ctx, id.RoomID(roomID))
	return cleanErr(err)
}

// Close stops syncing and releases the crypto store.
func (c *Client) Close() {
	c.cli.StopSync()
	if c.verifier != nil {
		c.verifier.closeAll()
	}
	if c.crypto != nil {
		if err := c.crypto.Close(); err != nil {
			c.logger.Warn("close crypto store", zap.Error(err))
		}
	}
}

// serverError carries the server's own message for a failed request.
type serverError struct {
	msg string
	err error
}

func (e *serverError) Error() string { return e.msg }
func (e *serverError) Unwrap() error { return e.err }

// cleanErr replaces a verbose HTTP error with the server's message while
// keeping the original matchable with errors.Is.
func cleanErr(err error) error {
	if err == nil {
		return nil
	}
	var re mautrix.RespError
	if errors.As(err, &re) && re.Err != "" {
		return &serverError{msg: re.Err, err: err}
	}
	return err
}
