package command

import (
	"sync"

	"github.com/sweeney/light-orchestra/internal/metrics"
)

// Mailbox holds at most one pending command. A newer command replaces an
// unconsumed older one, so a burst collapses to the most recent command.
// Unrecognized input never evicts a pending recognized command.
type Mailbox struct {
	mu         sync.Mutex
	pending    *Command
	superseded int
	discarded  int
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Offer stores c, replacing any pending command. It reports whether a
// pending command was replaced. An unrecognized c is dropped when a
// recognized command is already pending.
func (m *Mailbox) Offer(c Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.Kind == KindUnrecognized && m.pending != nil && m.pending.Kind != KindUnrecognized {
		m.discarded++
		metrics.CommandsDiscarded.Inc()
		return false
	}
	replaced := m.pending != nil
	if replaced {
		m.superseded++
		metrics.CommandsDropped.Inc()
	}
	m.pending = &c
	return replaced
}

// Poll takes the pending command, if any. It never blocks.
func (m *Mailbox) Poll() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return Command{}, false
	}
	c := *m.pending
	m.pending = nil
	return c, true
}

// Superseded returns how many commands were replaced before being consumed.
func (m *Mailbox) Superseded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.superseded
}

// Discarded returns how many unrecognized commands were dropped because a
// recognized command was pending.
func (m *Mailbox) Discarded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discarded
}
