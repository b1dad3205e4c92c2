// Package chat holds the values shared by the room cache, the reconciler
// and the renderer.
package chat

import (
	"maps"
	"strings"
	"time"
)

// ContentKind discriminates message payloads.
type ContentKind int

const (
	KindText ContentKind = iota
	KindNotice
	KindEmote
	KindImage
	KindFile
	KindVideo
	KindAudio
	KindEncrypted
)

// Content is the body of a message.
type Content struct {
	Kind     ContentKind
	Body     string
	MediaURL string
	FileName string
	Size     int64
}

// Text builds a content value for a plain text body.
func Text(body string) Content { return Content{Kind: KindText, Body: body} }

// Display returns the line shown for the content.
func (c Content) Display() string {
	switch c.Kind {
	case KindEmote:
		return "* " + c.Body
	case KindImage:
		return "[image] " + c.label()
	case KindFile:
		return "[file] " + c.label()
	case KindVideo:
		return "[video] " + c.label()
	case KindAudio:
		return "[audio] " + c.label()
	case KindEncrypted:
		return "[encrypted message, unable to decrypt]"
	default:
		return c.Body
	}
}

func (c Content) label() string {
	if c.FileName != "" {
		return c.FileName
	}
	return c.Body
}

// ReplyRef points at the message a reply answers. Sender and Snippet stay
// empty until the target is known locally.
type ReplyRef struct {
	EventID string
	Sender  string
	Snippet string
}

// Resolved reports whether the target has been found.
func (r *ReplyRef) Resolved() bool { return r != nil && r.Sender != "" }

// Message is one entry of a room timeline.
type Message struct {
	EventID   string // empty while the message is a local echo
	TxnID     string
	RoomID    string
	Sender    string
	Content   Content
	Timestamp time.Time
	ReplyTo   *ReplyRef
	Reactions map[string]int
	Edited    bool
}

// Provisional reports whether the message is an unconfirmed local echo.
func (m *Message) Provisional() bool { return m.EventID == "" }

// React bumps the counter for key.
func (m *Message) React(key string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]int)
	}
	m.Reactions[key]++
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		m.ReplyTo = &r
	}
	m.Reactions = maps.Clone(m.Reactions)
	return m
}

// CloneAll copies a message list.
func CloneAll(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// SnippetLen is the number of characters kept in a reply preview.
const SnippetLen = 50

// Snippet truncates body for reply previews.
func Snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= SnippetLen {
		return body
	}
	return string(runes[:SnippetLen]) + "..."
}

// ReplyFor builds a resolved reference to m.
func ReplyFor(m *Message) *ReplyRef {
	return &ReplyRef{EventID: m.EventID, Sender: m.Sender, Snippet: Snippet(m.Content.Body)}
}

// ResolveReplies fills unresolved reply references whose target is in msgs.
// The index is built once, so the pass is linear. It returns how many
// references were filled.
func ResolveReplies(msgs []Message) int {
	type target struct{ sender, snippet string }
	index := make(map[string]target, len(msgs))
	for i := range msgs {
		if id := msgs[i].EventID; id != "" {
			index[id] = target{msgs[i].Sender, Snippet(msgs[i].Content.Body)}
		}
	}
	filled := 0
	for i := range msgs {
		r := msgs[i].ReplyTo
		if r == nil || r.Resolved() {
			continue
		}
		if t, ok := index[r.EventID]; ok {
			r.Sender, r.Snippet = t.sender, t.snippet
			filled++
		}
	}
	return filled
}

// StripReplyFallback removes the quoted "> " block servers prepend to reply
// bodies, along with the blank separator line.
func StripReplyFallback(body string) string {
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "> ") {
		i++
	}
	if i == 0 {
		return body
	}
	if i < len(lines) && lines[i] == "" {
		i++
	}
	rest := strings.Join(lines[i:], "\n")
	if rest == "" {
		return body
	}
	return rest
}
