package chat

import (
	"fmt"
	"strings"
	"time"
)

// StampLayout renders timestamps in wire lines, e.g. "03:04:05 PM".
const StampLayout = "03:04:05 PM"

// Message is an immutable chat note. Identity and ordering are keyed by
// (Stamp, Author) only; the note text does not participate in either.
type Message struct {
	Author string
	Stamp  time.Time
	Note   string
}

// NewMessage constructs a message from an author, a stamp, and a note.
func NewMessage(author string, stamp time.Time, note string) Message {
	return Message{Author: author, Stamp: stamp, Note: note}
}

// Sentinel constructs a synthetic message used purely as a scan lower bound.
// Its empty author sorts before every real message with the same stamp, so a
// tail scan from a sentinel is inclusive of that stamp.
func Sentinel(stamp time.Time) Message {
	return Message{Stamp: stamp}
}

// Compare orders messages by stamp ascending, then author ascending.
// Returns a negative number, zero, or a positive number as m sorts before,
// equal to, or after other.
func (m Message) Compare(other Message) int {
	if c := m.Stamp.Compare(other.Stamp); c != 0 {
		return c
	}
	return strings.Compare(m.Author, other.Author)
}

// SameKey reports whether two messages share the (stamp, author) identity key.
// Two messages with the same key are indistinguishable to the ledger even if
// their note text differs.
func (m Message) SameKey(other Message) bool {
	return m.Compare(other) == 0
}

// NextStamp returns the smallest stamp strictly after this message's stamp.
// Cursors advance to it so a delivered message is never rescanned.
func (m Message) NextStamp() time.Time {
	return m.Stamp.Add(time.Nanosecond)
}

func (m Message) String() string {
	return fmt.Sprintf("%s(%s): %s", m.Author, m.Stamp.Format(StampLayout), m.Note)
}
