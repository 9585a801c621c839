package chat

import (
	"sort"
	"sync"
	"time"
)

// Ledger is the shared ordered set of all messages submitted during the life
// of the server process. It is owned by the server and exposed only through
// Insert and ScanFrom; callers never hold a lock.
type Ledger struct {
	mu      sync.RWMutex
	entries []Message
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Insert adds a message, keeping the ledger sorted by (stamp, author).
// A second insert with an identical key is a no-op and the first note text is
// retained. Returns false when the insert was coalesced this way.
func (l *Ledger) Insert(m Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Compare(m) >= 0
	})
	if idx < len(l.entries) && l.entries[idx].SameKey(m) {
		return false
	}

	l.entries = append(l.entries, Message{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = m
	return true
}

// ScanFrom returns a snapshot of all entries whose key is at or after the
// sentinel at cursor, in ascending key order. The snapshot is taken atomically
// at scan start; concurrent inserts never produce a torn or partial view.
func (l *Ledger) ScanFrom(cursor time.Time) []Message {
	sentinel := Sentinel(cursor)

	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Compare(sentinel) >= 0
	})
	if idx == len(l.entries) {
		return nil
	}

	tail := make([]Message, len(l.entries)-idx)
	copy(tail, l.entries[idx:])
	return tail
}

// Len returns the current number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
