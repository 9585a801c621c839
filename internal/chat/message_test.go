package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageOrdering(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 15, 30, 0, time.UTC)

	earlier := NewMessage("bob", base, "first")
	later := NewMessage("alice", base.Add(time.Nanosecond), "second")
	assert.Negative(t, earlier.Compare(later), "stamp dominates author")

	sameStampA := NewMessage("alice", base, "a")
	sameStampB := NewMessage("bob", base, "b")
	assert.Negative(t, sameStampA.Compare(sameStampB), "author breaks stamp ties")
	assert.Positive(t, sameStampB.Compare(sameStampA))
}

func TestMessageKeyIgnoresNote(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 10, 15, 30, 0, time.UTC)

	first := NewMessage("alice", stamp, "hello")
	second := NewMessage("alice", stamp, "completely different")

	assert.True(t, first.SameKey(second))
	assert.Zero(t, first.Compare(second))
}

func TestSentinelSortsBeforeRealMessages(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 10, 15, 30, 0, time.UTC)

	sentinel := Sentinel(stamp)
	real := NewMessage("alice", stamp, "hello")

	assert.Negative(t, sentinel.Compare(real), "sentinel at a stamp must include that stamp in a tail scan")
}

func TestNextStamp(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 10, 15, 30, 999999998, time.UTC)
	msg := NewMessage("alice", stamp, "hello")

	assert.Equal(t, stamp.Add(time.Nanosecond), msg.NextStamp())
	assert.True(t, msg.NextStamp().After(msg.Stamp))
}

func TestMessageString(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 22, 15, 30, 0, time.UTC)
	msg := NewMessage("alice", stamp, "hello")

	assert.Equal(t, "alice(10:15:30 PM): hello", msg.String())
}
