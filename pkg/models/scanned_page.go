package models

import (
	"fmt"
	"image"
	"time"
)

// ScannedPage is a single acquired sheet, held in memory until the
// session it belongs to is exported.
type ScannedPage struct {
	Image      image.Image
	ScanId     string
	SequenceId int
	ScanTime   time.Time
	Device     string
}

func (s ScannedPage) Id() string {
	return fmt.Sprintf("%s_%d", s.ScanId, s.SequenceId)
}

func (s ScannedPage) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

func (s ScannedPage) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}
