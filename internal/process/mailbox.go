package process

import (
	"sync"

	"github.com/zjrosen/claudecode/internal/protocol"
)

// mailbox is an unbounded notification queue. Producers never block; a
// single consumer takes batches.
type mailbox struct {
	mu     sync.Mutex
	items  []protocol.Notification
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// push enqueues n. It reports false once the mailbox is closed.
func (m *mailbox) push(n protocol.Notification) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, n)
	m.mu.Unlock()
	m.wake()
	return true
}

// close enqueues the terminal notification and refuses further pushes.
func (m *mailbox) close(last protocol.Notification) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.items = append(m.items, last)
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

// take removes everything queued. closed is true when no more will arrive.
func (m *mailbox) take() (items []protocol.Notification, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, m.items = m.items, nil
	return items, m.closed
}

func (m *mailbox) wake() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
