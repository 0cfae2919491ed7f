package session

import "github.com/eapache/queue"

// contextBuffer is a capacity-bounded FIFO of conversation turns. Appending
// beyond the capacity evicts the oldest entry.
type contextBuffer struct {
	q        *queue.Queue
	capacity int
}

func newContextBuffer(capacity int) *contextBuffer {
	return &contextBuffer{
		q:        queue.New(),
		capacity: capacity,
	}
}

func (b *contextBuffer) append(msg Message) {
	b.q.Add(msg)
	for b.q.Length() > b.capacity {
		b.q.Remove()
	}
}

// messages returns the buffered entries oldest-first as a fresh slice.
func (b *contextBuffer) messages() []Message {
	out := make([]Message, 0, b.q.Length())
	for i := 0; i < b.q.Length(); i++ {
		out = append(out, b.q.Get(i).(Message))
	}
	return out
}
