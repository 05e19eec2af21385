package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger().WithField("package", "device")

// Manager owns the connection to a scanning backend and turns its
// callbacks into typed events.
//
// opMu serializes calls into the backend. mu only guards the fields below
// it and is never held while the backend runs, so backends are free to
// invoke the Handler synchronously.
type Manager struct {
	backend        Backend
	events         chan Event
	bufferSize     int
	acquireTimeout time.Duration
	enabled        atomic.Bool

	opMu sync.Mutex

	mu        sync.Mutex
	opened    bool
	device    string
	acquiring bool
	timer     *time.Timer
	attempt   uint64
	// abandoned is the attempt that timed out; its late result is dropped.
	abandoned uint64
}

var _ Handler = (*Manager)(nil)

func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:    backend,
		bufferSize: 16,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = make(chan Event, m.bufferSize)
	backend.SetHandler(m)
	return m
}

// Events returns the channel on which acquisition results and state
// changes are delivered.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// OpenManager connects to the backend. It can be called again after a
// failure.
func (m *Manager) OpenManager() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.IsOpen() {
		return nil
	}
	if err := m.backend.Open(); err != nil {
		return fmt.Errorf("open scanner manager: %w", err)
	}
	m.mu.Lock()
	m.opened = true
	m.mu.Unlock()
	log.Debugf("scanner manager opened")
	return nil
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *Manager) Sources() ([]string, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.IsOpen() {
		return nil, ErrManagerClosed
	}
	return m.backend.Sources()
}

// SelectDevice closes the currently bound device and binds name.
func (m *Manager) SelectDevice(name string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.IsOpen() {
		return ErrManagerClosed
	}
	previous := m.Device()
	if err := m.backend.CloseSource(); err != nil {
		log.Warnf("unable to close %q: %v", previous, err)
	}
	m.setDevice("")
	if err := m.backend.Select(name); err != nil {
		return fmt.Errorf("select %q: %w", name, err)
	}
	m.setDevice(name)
	log.Infof("selected scanner %q", name)
	return nil
}

func (m *Manager) setDevice(name string) {
	m.mu.Lock()
	m.device = name
	m.mu.Unlock()
}

func (m *Manager) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Enabled mirrors the last "source enabled" flag reported by the backend.
// Nothing depends on it.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

func (m *Manager) Acquiring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquiring
}

// Acquire requests one scan pass from the selected device. The result is
// delivered later on the Events channel.
func (m *Manager) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if !m.opened {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.device == "" {
		m.mu.Unlock()
		return ErrNoDevice
	}
	device := m.device
	m.acquiring = true
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	if err := m.backend.Acquire(); err != nil {
		m.mu.Lock()
		if m.attempt == attempt {
			m.acquiring = false
		}
		m.mu.Unlock()
		return fmt.Errorf("acquire from %q: %w", device, err)
	}

	if m.acquireTimeout > 0 {
		m.mu.Lock()
		if m.acquiring && m.attempt == attempt {
			m.timer = time.AfterFunc(m.acquireTimeout, func() {
				m.timeout(attempt, device)
			})
		}
		m.mu.Unlock()
	}
	log.Debugf("acquisition requested from %q", device)
	return nil
}

func (m *Manager) timeout(attempt uint64, device string) {
	m.mu.Lock()
	if !m.acquiring || m.attempt != attempt {
		m.mu.Unlock()
		return
	}
	m.acquiring = false
	m.timer = nil
	m.abandoned = attempt
	m.mu.Unlock()
	log.Warnf("acquisition from %q timed out", device)
	m.emit(AcquisitionFailed{Device: device, Reason: ErrAcquireTimeout})
}

// finish marks the running acquisition as done and returns the device it
// was started on. stale is true when the acquisition had already timed
// out, in which case its result must not be delivered.
func (m *Manager) finish() (device string, stale bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.acquiring && m.abandoned != 0 && m.abandoned == m.attempt {
		m.abandoned = 0
		return m.device, true
	}
	m.acquiring = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	return m.device, false
}

// AcquireCompleted fetches the most recent image of the acquisition. A
// backend reporting zero images produces no event at all.
func (m *Manager) AcquireCompleted() {
	device, stale := m.finish()
	if stale {
		log.Warnf("dropping result of timed out acquisition from %q", device)
		return
	}
	count := m.backend.ImageCount()
	if count <= 0 {
		log.Debugf("acquisition from %q completed without images", device)
		return
	}
	img, err := m.backend.Image(count - 1)
	if err != nil {
		m.emit(AcquisitionFailed{Device: device, Reason: fmt.Errorf("fetch image %d: %w", count-1, err)})
		return
	}
	m.emit(ImageAcquired{Device: device, Image: img})
}

func (m *Manager) AcquireFailed(err error) {
	device, stale := m.finish()
	if stale {
		log.Warnf("dropping failure of timed out acquisition from %q: %v", device, err)
		return
	}
	log.Errorf("acquisition from %q failed: %v", device, err)
	m.emit(AcquisitionFailed{Device: device, Reason: err})
}

func (m *Manager) StateChanged(state State) {
	enabled := state.Has(StateSourceEnabled)
	m.enabled.Store(enabled)
	m.emit(StateChanged{State: state, Enabled: enabled})
}

func (m *Manager) emit(ev Event) {
	m.events <- ev
}

// Close releases the bound device.
func (m *Manager) Close() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.IsOpen() {
		return nil
	}
	m.setDevice("")
	return m.backend.CloseSource()
}
