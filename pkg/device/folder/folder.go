// Package folder implements a scanning backend on top of a directory tree.
// Every sub-directory of the root is a device and every acquisition picks
// up the next image file dropped into it, which is how scan-to-folder
// devices and tests feed pages in.
package folder

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/pageimage"
)

var log = logrus.StandardLogger().WithField("package", "device/folder")

type Backend struct {
	root string

	mu        sync.Mutex
	handler   device.Handler
	source    string
	consumed  map[string]bool
	images    []image.Image
	acquiring bool
}

var _ device.Backend = (*Backend)(nil)

func New(root string) *Backend {
	return &Backend{root: root, consumed: map[string]bool{}}
}

func (b *Backend) Open() error {
	st, err := os.Stat(b.root)
	if err != nil {
		return fmt.Errorf("open scan folder: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", b.root)
	}
	b.notify(device.StateManagerOpen)
	return nil
}

func (b *Backend) Sources() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		if e.IsDir() {
			sources = append(sources, e.Name())
		}
	}
	return sources, nil
}

func (b *Backend) Select(name string) error {
	dir := filepath.Join(b.root, name)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() || filepath.Dir(dir) != filepath.Clean(b.root) {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, name)
	}
	b.mu.Lock()
	b.source = name
	b.mu.Unlock()
	b.notify(device.StateManagerOpen | device.StateSourceOpen)
	return nil
}

func (b *Backend) CloseSource() error {
	b.mu.Lock()
	hadSource := b.source != ""
	b.source = ""
	b.mu.Unlock()
	if hadSource {
		b.notify(device.StateManagerOpen)
	}
	return nil
}

func (b *Backend) Acquire() error {
	b.mu.Lock()
	if b.source == "" {
		b.mu.Unlock()
		return device.ErrNoDevice
	}
	if b.acquiring {
		b.mu.Unlock()
		return device.ErrBusy
	}
	b.acquiring = true
	dir := filepath.Join(b.root, b.source)
	b.mu.Unlock()

	b.notify(device.StateManagerOpen | device.StateSourceOpen | device.StateSourceEnabled)
	go b.run(dir)
	return nil
}

func (b *Backend) run(dir string) {
	images, err := b.next(dir)

	b.mu.Lock()
	b.acquiring = false
	if err == nil {
		b.images = images
	}
	h := b.handler
	b.mu.Unlock()

	b.notify(device.StateManagerOpen | device.StateSourceOpen)
	if h == nil {
		return
	}
	if err != nil {
		h.AcquireFailed(err)
		return
	}
	h.AcquireCompleted()
}

// next decodes the first image file of dir that has not been picked up
// yet. An exhausted folder yields no images.
func (b *Backend) next(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && pageimage.Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p := filepath.Join(dir, name)
		b.mu.Lock()
		done := b.consumed[p]
		if !done {
			b.consumed[p] = true
		}
		b.mu.Unlock()
		if done {
			continue
		}

		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		img, err := pageimage.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		log.Debugf("picked up %s", p)
		return []image.Image{img}, nil
	}
	log.Debugf("no new pages in %s", dir)
	return nil, nil
}

func (b *Backend) ImageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.images)
}

func (b *Backend) Image(index int) (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.images) {
		return nil, fmt.Errorf("image index %d out of range [0, %d)", index, len(b.images))
	}
	return b.images[index], nil
}

func (b *Backend) SetHandler(h device.Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *Backend) notify(state device.State) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h.StateChanged(state)
	}
}
