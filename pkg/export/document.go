package export

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/denysvitali/odi-scan/pkg/pageimage"
)

// Document is what the Exporter needs from a document library: pages of a
// given size, an image drawn at a position, and a save to disk.
type Document interface {
	AddPage(width, height float64) error
	// DrawImage draws img on the current page with its top-left corner at
	// (x, y), one unit per pixel.
	DrawImage(img image.Image, x, y float64) error
	Save(path string) error
	Close() error
}

// NewDocumentFunc creates an empty document.
type NewDocumentFunc func() Document

type PDFOptions struct {
	// JPEGQuality is used to embed the page images.
	JPEGQuality int
	Creator     string
	Title       string
	CreatedAt   time.Time
}

type pdfDocument struct {
	pdf     *fpdf.Fpdf
	quality int
	images  int
	pages   int
	closed  bool
}

// NewPDF returns a NewDocumentFunc producing PDF documents measured in
// points, without margins or automatic page breaks.
func NewPDF(opts PDFOptions) NewDocumentFunc {
	return func() Document {
		f := fpdf.NewCustom(&fpdf.InitType{
			OrientationStr: "P",
			UnitStr:        "pt",
			SizeStr:        "A4",
		})
		f.SetMargins(0, 0, 0)
		f.SetAutoPageBreak(false, 0)
		if opts.Creator != "" {
			f.SetCreator(opts.Creator, true)
			f.SetProducer(opts.Creator, true)
		}
		if opts.Title != "" {
			f.SetTitle(opts.Title, true)
		}
		if !opts.CreatedAt.IsZero() {
			f.SetCreationDate(opts.CreatedAt)
		}
		return &pdfDocument{pdf: f, quality: opts.JPEGQuality}
	}
}

func (d *pdfDocument) AddPage(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid page size %gx%g", width, height)
	}
	d.pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	d.pages++
	return d.pdf.Error()
}

func (d *pdfDocument) DrawImage(img image.Image, x, y float64) error {
	if d.pages == 0 {
		return fmt.Errorf("no page to draw on")
	}
	buf := bytes.NewBuffer(nil)
	if err := pageimage.EncodeJPEG(buf, img, d.quality); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	d.images++
	name := fmt.Sprintf("scan-%d", d.images)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	d.pdf.RegisterImageOptionsReader(name, opts, buf)
	b := img.Bounds()
	d.pdf.ImageOptions(name, x, y, float64(b.Dx()), float64(b.Dy()), false, opts, 0, "")
	return d.pdf.Error()
}

func (d *pdfDocument) Save(path string) error {
	if d.closed {
		return fmt.Errorf("document already saved")
	}
	d.closed = true
	return d.pdf.OutputFileAndClose(path)
}

func (d *pdfDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.pdf.Close()
	return nil
}
