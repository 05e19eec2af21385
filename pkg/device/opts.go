package device

import "time"

type Option func(*Manager)

// WithAcquireTimeout makes the manager give up on an acquisition that has
// not completed within d. Zero waits forever.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.acquireTimeout = d
	}
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bufferSize = n
		}
	}
}
