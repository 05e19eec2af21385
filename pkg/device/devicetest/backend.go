// Package devicetest provides an in-memory scanning backend for tests.
package devicetest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/denysvitali/odi-scan/pkg/device"
)

// Backend is a device.Backend whose acquisitions complete when the test
// says so: either explicitly through Complete / Fail, or automatically
// with the next batch queued through Enqueue.
type Backend struct {
	OpenErr    error
	SelectErr  error
	AcquireErr error
	ImageErr   error
	Devices    []string

	mu       sync.Mutex
	handler  device.Handler
	opened   bool
	selected string
	images   []image.Image
	queue    [][]image.Image
	acquires int
	closes   int
}

var _ device.Backend = (*Backend)(nil)

func New(devices ...string) *Backend {
	return &Backend{Devices: devices}
}

func (b *Backend) Open() error {
	if b.OpenErr != nil {
		return b.OpenErr
	}
	b.mu.Lock()
	b.opened = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) Sources() ([]string, error) {
	return append([]string(nil), b.Devices...), nil
}

func (b *Backend) Select(name string) error {
	if b.SelectErr != nil {
		return b.SelectErr
	}
	found := false
	for _, d := range b.Devices {
		if d == name {
			found = true
		}
	}
	if !found {
		return device.ErrUnknownDevice
	}
	b.mu.Lock()
	b.selected = name
	b.mu.Unlock()
	return nil
}

func (b *Backend) CloseSource() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected = ""
	b.closes++
	return nil
}

func (b *Backend) Acquire() error {
	if b.AcquireErr != nil {
		return b.AcquireErr
	}
	b.mu.Lock()
	b.acquires++
	var next []image.Image
	auto := len(b.queue) > 0
	if auto {
		next = b.queue[0]
		b.queue = b.queue[1:]
	}
	b.mu.Unlock()
	if auto {
		go b.Complete(next...)
	}
	return nil
}

func (b *Backend) ImageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.images)
}

func (b *Backend) Image(index int) (image.Image, error) {
	if b.ImageErr != nil {
		return nil, b.ImageErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.images) {
		return nil, fmt.Errorf("image %d out of range", index)
	}
	return b.images[index], nil
}

func (b *Backend) SetHandler(h device.Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Enqueue makes a future Acquire complete on its own with images.
func (b *Backend) Enqueue(images ...image.Image) {
	b.mu.Lock()
	b.queue = append(b.queue, images)
	b.mu.Unlock()
}

// Complete finishes an acquisition that produced images.
func (b *Backend) Complete(images ...image.Image) {
	b.mu.Lock()
	b.images = images
	h := b.handler
	b.mu.Unlock()
	h.AcquireCompleted()
}

func (b *Backend) Fail(err error) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	h.AcquireFailed(err)
}

func (b *Backend) SetState(s device.State) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	h.StateChanged(s)
}

func (b *Backend) Selected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

func (b *Backend) Acquires() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquires
}

func (b *Backend) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Page returns a solid image of the given size, which is enough to tell
// pages apart by their bounds.
func Page(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xee
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	return img
}
