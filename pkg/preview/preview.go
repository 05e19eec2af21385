// Package preview keeps a JPEG thumbnail of the most recently acquired page.
package preview

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/pageimage"
)

var log = logrus.StandardLogger().WithField("package", "preview")

const DefaultWidth = 600

var ErrNoPreview = errors.New("no page has been scanned yet")

// Cache renders each page it is shown into a JPEG thumbnail and keeps the
// latest one.
type Cache struct {
	width   int
	quality int

	mu   sync.RWMutex
	jpeg []byte
	id   string
}

func New(width int, quality int) *Cache {
	if width <= 0 {
		width = DefaultWidth
	}
	if quality <= 0 {
		quality = pageimage.DefaultQuality
	}
	return &Cache{width: width, quality: quality}
}

func (c *Cache) ShowPreview(page models.ScannedPage) error {
	if page.Image == nil {
		return errors.New("page has no image")
	}
	b, err := pageimage.JPEGBytes(pageimage.Thumbnail(page.Image, c.width), c.quality)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.jpeg = b
	c.id = page.Id()
	c.mu.Unlock()
	log.Debugf("preview updated to page %s (%d bytes)", page.Id(), len(b))
	return nil
}

// Latest returns the thumbnail of the last page and its id.
func (c *Cache) Latest() ([]byte, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.jpeg == nil {
		return nil, "", ErrNoPreview
	}
	return c.jpeg, c.id, nil
}

// Reset forgets the current thumbnail.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.jpeg = nil
	c.id = ""
	c.mu.Unlock()
}
