package session

import (
	"errors"

	"github.com/denysvitali/odi-scan/pkg/export"
	"github.com/denysvitali/odi-scan/pkg/models"
)

// ErrNoPages is returned when a session is exported before anything was
// scanned.
var ErrNoPages = export.ErrNoPages

// Accumulator is the ordered list of pages scanned since the last export.
// It only grows by Append and only shrinks by a full Clear.
type Accumulator struct {
	pages []models.ScannedPage
}

// Append adds page at the tail and numbers it.
func (a *Accumulator) Append(page models.ScannedPage) models.ScannedPage {
	page.SequenceId = len(a.pages) + 1
	a.pages = append(a.pages, page)
	return page
}

func (a *Accumulator) Len() int {
	return len(a.pages)
}

// Pages returns the pages in acquisition order.
func (a *Accumulator) Pages() []models.ScannedPage {
	return append([]models.ScannedPage(nil), a.pages...)
}

// Page returns the page with the given sequence id.
func (a *Accumulator) Page(sequenceId int) (models.ScannedPage, bool) {
	if sequenceId < 1 || sequenceId > len(a.pages) {
		return models.ScannedPage{}, false
	}
	return a.pages[sequenceId-1], true
}

func (a *Accumulator) Clear() {
	a.pages = nil
}

// Drain hands all pages to fn and clears the accumulator if fn succeeds.
// An empty accumulator is refused with ErrNoPages and left untouched, as
// is the accumulator when fn fails.
func (a *Accumulator) Drain(fn func([]models.ScannedPage) error) error {
	if len(a.pages) == 0 {
		return ErrNoPages
	}
	if err := fn(a.Pages()); err != nil {
		return err
	}
	a.Clear()
	return nil
}

// IsNoPages reports whether err is the empty-session refusal.
func IsNoPages(err error) bool {
	return errors.Is(err, ErrNoPages)
}
