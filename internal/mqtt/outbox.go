package mqtt

import (
	"sync"

	"github.com/sweeney/light-orchestra/internal/logger"
)

// DefaultOutboxSize is how many messages are held while disconnected.
const DefaultOutboxSize = 100

// pending is a serialized message waiting for the connection to return.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of messages queued while the broker is
// unreachable. When full, the oldest message is overwritten.
type outbox struct {
	mu       sync.Mutex
	ring     []pending
	head     int // next write position
	count    int
	dropped  int
	overflow bool
}

func newOutbox(capacity int) *outbox {
	if capacity <= 0 {
		capacity = DefaultOutboxSize
	}
	return &outbox{ring: make([]pending, capacity)}
}

func (o *outbox) push(msg pending) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.ring)
	o.ring[o.head] = msg
	o.head = (o.head + 1) % n
	if o.count < n {
		o.count++
		return
	}
	o.dropped++
	if !o.overflow {
		o.overflow = true
		logger.Logger().Warnw("mqtt outbox full, dropping oldest", "capacity", n)
	}
}

// drain removes and returns every queued message, oldest first.
func (o *outbox) drain() []pending {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.count == 0 {
		return nil
	}
	n := len(o.ring)
	out := make([]pending, o.count)
	first := (o.head - o.count + n) % n
	for i := range out {
		out[i] = o.ring[(first+i)%n]
	}
	o.count = 0
	o.head = 0
	o.overflow = false
	return out
}

// requeue puts msgs back ahead of anything queued since they were drained.
// If the combined length exceeds capacity, the oldest messages are dropped.
func (o *outbox) requeue(msgs []pending) {
	if len(msgs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.ring)
	all := make([]pending, 0, len(msgs)+o.count)
	all = append(all, msgs...)
	first := (o.head - o.count + n) % n
	for i := 0; i < o.count; i++ {
		all = append(all, o.ring[(first+i)%n])
	}
	if over := len(all) - n; over > 0 {
		o.dropped += over
		all = all[over:]
		if !o.overflow {
			o.overflow = true
			logger.Logger().Warnw("mqtt outbox full, dropping oldest", "capacity", n)
		}
	}
	copy(o.ring, all)
	o.count = len(all)
	o.head = o.count % n
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

func (o *outbox) droppedTotal() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
