// Package session holds the state of a scan session: the pages scanned so
// far, where they will be exported to, and the device they come from.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/export"
	"github.com/denysvitali/odi-scan/pkg/metrics"
	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "session")

// PreviewSink shows the most recently acquired page.
type PreviewSink interface {
	ShowPreview(page models.ScannedPage) error
}

// Notifier reports errors that happen outside of a user action, such as a
// failed acquisition.
type Notifier interface {
	Notify(title string, err error)
}

type Config struct {
	Manager     *device.Manager
	Exporter    *export.Exporter
	Destination string
	Preview     PreviewSink
	Notifier    Notifier
	// Archive, if set, receives a copy of every exported document.
	Archive model.Storer
}

type Status struct {
	ScanId      string                   `json:"scanId"`
	State       State                    `json:"state"`
	Pages       int                      `json:"pages"`
	Destination string                   `json:"destination"`
	Device      string                   `json:"device,omitempty"`
	ManagerOpen bool                     `json:"managerOpen"`
	Enabled     bool                     `json:"enabled"`
	LastExport  *models.ExportedDocument `json:"lastExport,omitempty"`
}

type notification struct {
	title string
	err   error
}

type Controller struct {
	devices  *device.Manager
	exporter *export.Exporter
	preview  PreviewSink
	notifier Notifier
	archive  model.Storer
	now      func() time.Time

	mu          sync.Mutex
	pages       Accumulator
	scanId      string
	destination string
	state       State
	enabled     bool
	lastExport  *models.ExportedDocument
}

func New(config Config) *Controller {
	c := &Controller{
		devices:     config.Manager,
		exporter:    config.Exporter,
		preview:     config.Preview,
		notifier:    config.Notifier,
		archive:     config.Archive,
		destination: config.Destination,
		scanId:      uuid.NewString(),
		now:         time.Now,
	}
	if c.exporter == nil {
		c.exporter = export.New()
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{}
	}
	if c.destination == "" {
		c.destination = DefaultDestination()
	}
	return c
}

// Open connects to the scanning backend. A failure is reported and
// returned, but the controller stays usable: SelectDevice retries.
func (c *Controller) Open() error {
	err := c.devices.OpenManager()
	if err != nil {
		c.notifier.Notify("Scanner", err)
	}
	return err
}

func (c *Controller) ensureOpen() error {
	if c.devices.IsOpen() {
		return nil
	}
	return c.devices.OpenManager()
}

// Devices lists the devices the user can choose from.
func (c *Controller) Devices() ([]string, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	return c.devices.Sources()
}

// SelectDevice binds a device. Accumulated pages are kept.
func (c *Controller) SelectDevice(name string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if err := c.devices.SelectDevice(name); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state != Acquiring {
		c.state = DeviceSelected
	}
	c.mu.Unlock()
	return nil
}

// Scan asks the selected device for one page. The page arrives later
// through HandleEvent.
func (c *Controller) Scan(ctx context.Context) error {
	c.mu.Lock()
	previous := c.state
	c.state = Acquiring
	c.mu.Unlock()

	if err := c.devices.Acquire(ctx); err != nil {
		c.mu.Lock()
		if c.state == Acquiring {
			c.state = previous
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// SetDestination replaces the export folder. Callers only invoke it once
// the user confirmed a choice.
func (c *Controller) SetDestination(path string) error {
	if path == "" {
		return fmt.Errorf("empty destination")
	}
	c.mu.Lock()
	c.destination = path
	c.mu.Unlock()
	log.Infof("destination set to %s", path)
	return nil
}

func (c *Controller) Destination() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destination
}

// Page returns an accumulated page by its sequence id.
func (c *Controller) Page(sequenceId int) (models.ScannedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.Page(sequenceId)
}

func (c *Controller) Pages() []models.ScannedPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.Pages()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ScanId:      c.scanId,
		State:       c.state,
		Pages:       c.pages.Len(),
		Destination: c.destination,
		Device:      c.devices.Device(),
		ManagerOpen: c.devices.IsOpen(),
		Enabled:     c.enabled,
		LastExport:  c.lastExport,
	}
}

// HandleEvent applies a device event to the session. It must be called
// from the thread that owns the session, see Run.
func (c *Controller) HandleEvent(ev device.Event) {
	var notes []notification

	c.mu.Lock()
	switch ev := ev.(type) {
	case device.ImageAcquired:
		page := c.pages.Append(models.ScannedPage{
			Image:    ev.Image,
			ScanId:   c.scanId,
			ScanTime: c.now(),
			Device:   ev.Device,
		})
		c.state = Idle
		metrics.PagesAcquired.Inc()
		metrics.SessionPages.Set(float64(c.pages.Len()))
		log.Debugf("appended page %s (%dx%d)", page.Id(), page.Width(), page.Height())
		if c.preview != nil {
			if err := c.preview.ShowPreview(page); err != nil {
				notes = append(notes, notification{"Preview", err})
			}
		}
	case device.AcquisitionFailed:
		c.state = Idle
		metrics.AcquisitionFailures.Inc()
		notes = append(notes, notification{"Scanner", ev.Reason})
	case device.StateChanged:
		c.enabled = ev.Enabled
	}
	c.mu.Unlock()

	for _, n := range notes {
		c.notifier.Notify(n.title, n.err)
	}
}

// Run feeds device events to HandleEvent until ctx is done. dispatch runs
// the handler on the owning thread; nil runs it on the Run goroutine.
func (c *Controller) Run(ctx context.Context, dispatch func(func())) {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	events := c.devices.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			dispatch(func() {
				c.HandleEvent(ev)
			})
		}
	}
}

// Finish exports every accumulated page into one PDF inside the current
// destination and starts a new session. Nothing changes when there are
// no pages or when the export fails.
func (c *Controller) Finish() (*models.ExportedDocument, error) {
	c.mu.Lock()
	previous := c.state
	c.state = Exporting
	destination := c.destination

	var doc *models.ExportedDocument
	err := c.pages.Drain(func(pages []models.ScannedPage) error {
		var err error
		doc, err = c.exporter.Export(pages, destination)
		return err
	})
	switch {
	case IsNoPages(err):
		c.state = previous
		metrics.Exports.WithLabelValues(metrics.ResultEmpty).Inc()
	case err != nil:
		c.state = previous
		metrics.Exports.WithLabelValues(metrics.ResultError).Inc()
		log.Errorf("export failed: %v", err)
	default:
		c.state = Idle
		c.lastExport = doc
		c.scanId = uuid.NewString()
		metrics.Exports.WithLabelValues(metrics.ResultSuccess).Inc()
		metrics.SessionPages.Set(0)
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if c.archive != nil {
		if err := c.archiveDocument(*doc); err != nil {
			c.notifier.Notify("Archive", fmt.Errorf("archive %s: %w", doc.Name, err))
		}
	}
	return doc, nil
}

func (c *Controller) archiveDocument(doc models.ExportedDocument) error {
	f, err := os.Open(doc.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	doc.Reader = f
	return c.archive.Store(doc)
}
