package models

import (
	"io"
	"time"
)

// ExportedDocument describes a PDF written by an export. It is only a
// receipt: the document itself is not retained after the save.
type ExportedDocument struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ScanId     string    `json:"scanId"`
	Pages      int       `json:"pages"`
	ExportedAt time.Time `json:"exportedAt"`

	// Reader is only set while the document is handed to an archive store.
	Reader io.ReadSeeker `json:"-"`
}
