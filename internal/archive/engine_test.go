package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/outbox"
	"github.com/matheus3301/matrixtui/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func bodies(t *testing.T, db *store.DB, roomID string) []string {
	t.Helper()
	msgs, err := db.RecentMessages(context.Background(), roomID, 100)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, m := range msgs {
		out = append(out, m.Content.Body)
	}
	return out
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngineIngestMessageAndEdit(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	msg := backend.MessageReceived{
		Account: "@a:hs", RoomID: "!r:hs", EventID: "$1", Sender: "@b:hs",
		Content: chat.Text("tpyo"), Timestamp: time.UnixMilli(1000),
	}
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}
	// Same event again is idempotent.
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}
	edit := backend.MessageReceived{
		Account: "@a:hs", RoomID: "!r:hs", EventID: "$2", Sender: "@b:hs",
		Content: chat.Text("typo"), Timestamp: time.UnixMilli(2000), Replaces: "$1",
	}
	if err := e.IngestMessage(edit); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("!r:hs", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Body != "typo" || !msgs[0].Edited {
		t.Errorf("message = %+v, want edited typo", msgs[0])
	}
}

func TestEngineIngestHistorySkipsEchoes(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	page := []chat.Message{
		{EventID: "$1", RoomID: "!r:hs", Sender: "@b:hs", Content: chat.Text("one"), Timestamp: time.UnixMilli(1000)},
		{EventID: "$2", RoomID: "!r:hs", Sender: "@b:hs", Content: chat.Text("two"), Timestamp: time.UnixMilli(2000)},
		{TxnID: "t1", RoomID: "!r:hs", Sender: "@a:hs", Content: chat.Text("pending"), Timestamp: time.UnixMilli(3000)},
	}
	for range 2 {
		if err := e.IngestHistory(page); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"one", "two"}, bodies(t, db, "!r:hs")); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineBusSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(db, b, logger)
	e.Start(context.Background())
	defer e.Stop()

	b.Emit(bus.KindRoomsUpdated, []chat.Room{{ID: "!r:hs", AccountID: "@a:hs", Name: "General"}})
	b.Emit(bus.KindMessageReceived, backend.MessageReceived{
		Account: "@a:hs", RoomID: "!r:hs", EventID: "$1", Sender: "@b:hs",
		Content: chat.Text("from bus"), Timestamp: time.UnixMilli(1000),
	})
	b.Emit(bus.KindMessageSent, outbox.Sent{
		Account: "@a:hs", RoomID: "!r:hs", EventID: "$2", Body: "mine", Timestamp: time.UnixMilli(2000),
	})

	eventually(t, func() bool { return len(bodies(t, db, "!r:hs")) == 2 })
	if diff := cmp.Diff([]string{"from bus", "mine"}, bodies(t, db, "!r:hs")); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
	rooms, err := db.ListRooms("@a:hs")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].Name != "General" {
		t.Errorf("rooms = %+v", rooms)
	}

	b.Emit(bus.KindMessageRedacted, backend.MessageRedacted{Account: "@a:hs", RoomID: "!r:hs", EventID: "$1"})
	eventually(t, func() bool { return len(bodies(t, db, "!r:hs")) == 1 })

	b.Emit(bus.KindRoomRemoved, "!r:hs")
	eventually(t, func() bool { return len(bodies(t, db, "!r:hs")) == 0 })

	last, err := LastWrite(db)
	if err != nil {
		t.Fatal(err)
	}
	if last.IsZero() {
		t.Error("last write not recorded")
	}
}

func TestEngineCacheCleared(t *testing.T) {
	defer goleak.VerifyNone(t)

	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)
	e.Start(context.Background())
	defer e.Stop()

	if err := db.UpsertMessage(&store.Message{RoomID: "!r:hs", EventID: "$1", Body: "old", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	b.Emit(bus.KindCacheCleared, nil)
	eventually(t, func() bool { return len(bodies(t, db, "!r:hs")) == 0 })
}

func TestLastWriteFreshArchive(t *testing.T) {
	db := testDB(t)
	last, err := LastWrite(db)
	if err != nil {
		t.Fatal(err)
	}
	if !last.IsZero() {
		t.Errorf("LastWrite() = %v, want zero", last)
	}
}
