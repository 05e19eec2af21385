package export_test

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/odi-scan/pkg/device/devicetest"
	"github.com/denysvitali/odi-scan/pkg/export"
	"github.com/denysvitali/odi-scan/pkg/models"
)

func TestMain(m *testing.M) {
	logrus.StandardLogger().SetLevel(logrus.DebugLevel)
	os.Exit(m.Run())
}

var exportTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type call struct {
	op   string
	w, h float64
	img  image.Image
	x, y float64
	path string
}

type recordingDocument struct {
	calls   []call
	saveErr error
	closed  bool
}

func (d *recordingDocument) AddPage(w, h float64) error {
	d.calls = append(d.calls, call{op: "page", w: w, h: h})
	return nil
}

func (d *recordingDocument) DrawImage(img image.Image, x, y float64) error {
	d.calls = append(d.calls, call{op: "draw", img: img, x: x, y: y})
	return nil
}

func (d *recordingDocument) Save(path string) error {
	d.calls = append(d.calls, call{op: "save", path: path})
	return d.saveErr
}

func (d *recordingDocument) Close() error {
	d.closed = true
	return nil
}

func pages(images ...image.Image) []models.ScannedPage {
	var p []models.ScannedPage
	for i, img := range images {
		p = append(p, models.ScannedPage{Image: img, ScanId: "s1", SequenceId: i + 1})
	}
	return p
}

func TestExporter_PageOrderAndPlacement(t *testing.T) {
	doc := &recordingDocument{}
	e := export.New(
		export.WithClock(func() time.Time { return exportTime }),
		export.WithDocument(func() export.Document { return doc }),
	)

	a, b, c := devicetest.Page(10, 20), devicetest.Page(30, 40), devicetest.Page(50, 60)
	res, err := e.Export(pages(a, b, c), "/out")
	require.NoError(t, err)

	want := []call{
		{op: "page", w: 10, h: 20},
		{op: "draw", img: a},
		{op: "page", w: 30, h: 40},
		{op: "draw", img: b},
		{op: "page", w: 50, h: 60},
		{op: "draw", img: c},
		{op: "save", path: filepath.Join("/out", "2024-03-09T140507testScan.pdf")},
	}
	assert.Equal(t, want, doc.calls)
	assert.True(t, doc.closed)

	assert.Equal(t, "2024-03-09T140507testScan.pdf", res.Name)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, "s1", res.ScanId)
	assert.Equal(t, exportTime, res.ExportedAt)
}

func TestExporter_NoPages(t *testing.T) {
	created := false
	e := export.New(export.WithDocument(func() export.Document {
		created = true
		return &recordingDocument{}
	}))
	_, err := e.Export(nil, t.TempDir())
	assert.ErrorIs(t, err, export.ErrNoPages)
	assert.EqualError(t, err, "at least one page must be scanned before saving")
	assert.False(t, created)
}

func TestExporter_SaveFailure(t *testing.T) {
	doc := &recordingDocument{saveErr: errors.New("read-only file system")}
	e := export.New(export.WithDocument(func() export.Document { return doc }))
	_, err := e.Export(pages(devicetest.Page(4, 4)), "/ro")
	require.Error(t, err)
	assert.ErrorIs(t, err, doc.saveErr)
	assert.True(t, doc.closed)
}

func TestExporter_FileName(t *testing.T) {
	e := export.New(export.WithSuffix("invoice.pdf"))
	assert.Equal(t, "2024-03-09T140507invoice.pdf", e.FileName(exportTime))
	assert.Equal(t, "2024-03-09T140507testScan.pdf", export.New().FileName(exportTime))
}

var countRegexp = regexp.MustCompile(`/Type /Pages[^>]*/Count (\d+)`)

func TestExporter_WritesPDF(t *testing.T) {
	dir := t.TempDir()
	e := export.New(
		export.WithClock(func() time.Time { return exportTime }),
		export.WithDocument(export.NewPDF(export.PDFOptions{Creator: "odi-scan", JPEGQuality: 80})),
	)

	res, err := e.Export(pages(devicetest.Page(100, 140), devicetest.Page(120, 80), devicetest.Page(60, 60)), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-03-09T140507testScan.pdf"), res.Path)

	b, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
	m := countRegexp.FindSubmatch(b)
	require.NotNil(t, m, "page tree not found")
	assert.Equal(t, "3", string(m[1]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExporter_UnwritableDestination(t *testing.T) {
	e := export.New()
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	_, err := e.Export(pages(devicetest.Page(10, 10)), missing)
	assert.Error(t, err)
	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))
}
