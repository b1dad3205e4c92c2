// Package backend defines what the client needs from a chat network.
package backend

import (
	"context"
	"time"

	"github.com/matheus3301/matrixtui/internal/chat"
)

// Credentials restore a previously authenticated session.
type Credentials struct {
	Homeserver  string
	UserID      string
	AccessToken string
	DeviceID    string
}

// ChatBackend creates authenticated clients.
type ChatBackend interface {
	Login(ctx context.Context, homeserver, user, password string) (Client, Credentials, error)
	Restore(ctx context.Context, creds Credentials) (Client, error)
}

// Sink receives events from a sync loop. It reports false once the
// receiver is gone, after which the loop should return.
type Sink func(Event) bool

// HistoryPage is one backward page of a room timeline, oldest first.
// Next is empty when there is nothing older.
type HistoryPage struct {
	Messages []chat.Message
	Next     string
}

// CreateRoomRequest describes a new room.
type CreateRoomRequest struct {
	Name      string
	Topic     string
	Public    bool
	Encrypted bool
	Federated bool
	Invites   []string
}

// RoomDetails backs the room info overlay.
type RoomDetails struct {
	ID        string
	Name      string
	Topic     string
	Alias     string
	Members   int
	Encrypted bool
	IsDM      bool
	Created   time.Time
}

// Client is one authenticated account.
type Client interface {
	UserID() string
	Homeserver() string

	Rooms(ctx context.Context) ([]chat.Room, error)
	RoomDetails(ctx context.Context, roomID string) (RoomDetails, error)
	FetchHistory(ctx context.Context, roomID, from string, limit int) (HistoryPage, error)

	SendText(ctx context.Context, roomID, body, txnID string) (string, error)
	SendReply(ctx context.Context, roomID, body string, to chat.ReplyRef, txnID string) (string, error)
	SendReaction(ctx context.Context, roomID, eventID, key string) error
	EditMessage(ctx context.Context, roomID, eventID, body string) error
	Redact(ctx context.Context, roomID, eventID string) error
	SendTyping(ctx context.Context, roomID string, typing bool) error
	MarkRead(ctx context.Context, roomID, eventID string) error

	DisplayName(ctx context.Context) (string, error)
	SetDisplayName(ctx context.Context, name string) error
	SetAvatarURL(ctx context.Context, url string) error
	UploadAvatar(ctx context.Context, path string) (string, error)

	CreateRoom(ctx context.Context, req CreateRoomRequest) (string, error)
	SetRoomName(ctx context.Context, roomID, name string) error
	SetRoomTopic(ctx context.Context, roomID, topic string) error
	Invite(ctx context.Context, roomID, userID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	ForgetRoom(ctx context.Context, roomID string) error

	RecoverKeys(ctx context.Context, recoveryKey string) error
	RequestVerification(ctx context.Context) (VerificationRequest, error)
	IncomingVerification(ctx context.Context, userID, flowID string) (VerificationRequest, error)

	// Sync runs the sync loop until ctx is cancelled or a fatal error occurs.
	Sync(ctx context.Context, sink Sink) error
	Close()
}
