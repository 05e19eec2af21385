// Package escl drives network scanners speaking eSCL (AirScan).
package escl

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stapelberg/airscan"
	"github.com/stapelberg/airscan/preset"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/pageimage"
)

var log = logrus.StandardLogger().WithField("package", "device/escl")

// PageScanner is the page iterator of a running scan job.
type PageScanner interface {
	ScanPage() bool
	CurrentPage() io.Reader
	Err() error
}

// StartFunc starts a scan job on host.
type StartFunc func(host string, settings *airscan.ScanSettings) (PageScanner, error)

type Config struct {
	// Hosts are the scanners offered to the user, as accepted by
	// airscan.NewClient.
	Hosts []string
	// Source is the eSCL input source, "Platen" or "Feeder".
	Source string
	// Start overrides how scan jobs are started.
	Start StartFunc
}

type Backend struct {
	hosts  []string
	source string
	start  StartFunc

	mu        sync.Mutex
	handler   device.Handler
	opened    bool
	host      string
	acquiring bool
	images    []image.Image
}

var _ device.Backend = (*Backend)(nil)

func New(config Config) *Backend {
	b := &Backend{
		hosts:  config.Hosts,
		source: config.Source,
		start:  config.Start,
	}
	if b.source == "" {
		b.source = "Platen"
	}
	if b.start == nil {
		b.start = startAirscan
	}
	return b
}

func startAirscan(host string, settings *airscan.ScanSettings) (PageScanner, error) {
	c := airscan.NewClient(host)
	job, err := c.Scan(settings)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (b *Backend) settings() *airscan.ScanSettings {
	settings := preset.GrayscaleA4ADF()
	settings.Duplex = false
	settings.ColorMode = "RGB24"
	settings.DocumentFormat = "image/jpeg"
	settings.InputSource = b.source
	return settings
}

func (b *Backend) Open() error {
	if len(b.hosts) == 0 {
		return fmt.Errorf("no eSCL scanners configured")
	}
	b.mu.Lock()
	b.opened = true
	b.mu.Unlock()
	b.notify(device.StateManagerOpen)
	return nil
}

func (b *Backend) Sources() ([]string, error) {
	return append([]string(nil), b.hosts...), nil
}

func (b *Backend) Select(name string) error {
	known := false
	for _, h := range b.hosts {
		if h == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, name)
	}
	b.mu.Lock()
	b.host = name
	b.mu.Unlock()
	b.notify(device.StateManagerOpen | device.StateSourceOpen)
	return nil
}

func (b *Backend) CloseSource() error {
	b.mu.Lock()
	hadSource := b.host != ""
	b.host = ""
	b.mu.Unlock()
	if hadSource {
		b.notify(device.StateManagerOpen)
	}
	return nil
}

// Acquire starts a scan job in the background. Every page the job yields
// is decoded and kept until the next acquisition.
func (b *Backend) Acquire() error {
	b.mu.Lock()
	if b.host == "" {
		b.mu.Unlock()
		return device.ErrNoDevice
	}
	if b.acquiring {
		b.mu.Unlock()
		return device.ErrBusy
	}
	b.acquiring = true
	host := b.host
	b.mu.Unlock()

	b.notify(device.StateManagerOpen | device.StateSourceOpen | device.StateSourceEnabled)
	go b.run(host, b.settings())
	return nil
}

func (b *Backend) run(host string, settings *airscan.ScanSettings) {
	images, err := b.scan(host, settings)

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

func (b *Backend) scan(host string, settings *airscan.ScanSettings) ([]image.Image, error) {
	log.Debugf("starting scan job on %s (source %s)", host, settings.InputSource)
	job, err := b.start(host, settings)
	if err != nil {
		return nil, fmt.Errorf("unable to create scan job: %w", err)
	}

	var images []image.Image
	for job.ScanPage() {
		img, err := pageimage.Decode(job.CurrentPage())
		if err != nil {
			return nil, fmt.Errorf("unable to read page %d: %w", len(images)+1, err)
		}
		images = append(images, img)
	}
	if err := job.Err(); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	log.Debugf("scan job on %s produced %d pages", host, len(images))
	return images, nil
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
