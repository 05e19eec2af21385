// Package export turns the pages of a scan session into a single PDF.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/models"
)

var log = logrus.StandardLogger().WithField("package", "export")

var ErrNoPages = errors.New("at least one page must be scanned before saving")

const (
	DefaultSuffix    = "testScan.pdf"
	TimestampLayout  = "2006-01-02T150405"
	defaultCreatorId = "odi-scan"
)

type Exporter struct {
	newDocument NewDocumentFunc
	suffix      string
	now         func() time.Time
}

type Option func(*Exporter)

// WithSuffix changes what follows the timestamp in the file name.
func WithSuffix(suffix string) Option {
	return func(e *Exporter) {
		if suffix != "" {
			e.suffix = suffix
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

func WithDocument(fn NewDocumentFunc) Option {
	return func(e *Exporter) {
		e.newDocument = fn
	}
}

func New(opts ...Option) *Exporter {
	e := &Exporter{
		suffix: DefaultSuffix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.newDocument == nil {
		e.newDocument = NewPDF(PDFOptions{Creator: defaultCreatorId})
	}
	return e
}

// FileName returns the name an export started at t is written to.
func (e *Exporter) FileName(t time.Time) string {
	return t.Format(TimestampLayout) + e.suffix
}

// Export writes pages, in order, one per page into a new document inside
// destination. Each image sits at the page origin at its pixel size.
// An existing file with the same name is overwritten.
func (e *Exporter) Export(pages []models.ScannedPage, destination string) (*models.ExportedDocument, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	now := e.now()
	name := e.FileName(now)
	path := filepath.Join(destination, name)

	doc := e.newDocument()
	defer doc.Close()

	for i, p := range pages {
		if p.Image == nil {
			return nil, fmt.Errorf("page %d has no image", i+1)
		}
		if err := doc.AddPage(float64(p.Width()), float64(p.Height())); err != nil {
			return nil, fmt.Errorf("add page %d: %w", i+1, err)
		}
		if err := doc.DrawImage(p.Image, 0, 0); err != nil {
			return nil, fmt.Errorf("draw page %d: %w", i+1, err)
		}
	}

	if err := doc.Save(path); err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	log.Infof("exported %d pages to %s", len(pages), path)

	return &models.ExportedDocument{
		Name:       name,
		Path:       path,
		ScanId:     pages[0].ScanId,
		Pages:      len(pages),
		ExportedAt: now,
	}, nil
}
