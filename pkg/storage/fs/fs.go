package fs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "storage/fs")

// Fs archives documents below a local directory, one sub-directory per
// scan session.
type Fs struct {
	dir string
}

var _ model.Storer = (*Fs)(nil)
var _ model.Retriever = (*Fs)(nil)

func New(dir string) (*Fs, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Fs{dir: dir}, nil
}

func (fs *Fs) path(scanId string, name string) (string, error) {
	if scanId == "" || name == "" ||
		strings.ContainsAny(scanId, `/\`) || strings.ContainsAny(name, `/\`) ||
		scanId == ".." || name == ".." {
		return "", fmt.Errorf("invalid archive key %q/%q", scanId, name)
	}
	return filepath.Join(fs.dir, scanId, name), nil
}

func (fs *Fs) Store(doc models.ExportedDocument) error {
	if doc.Reader == nil {
		return fmt.Errorf("document %s has no content", doc.Name)
	}
	p, err := fs.path(doc.ScanId, doc.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, doc.Reader); err != nil {
		return err
	}
	if _, err := doc.Reader.Seek(0, io.SeekStart); err != nil {
		return err
	}
	log.Debugf("archived %s", f.Name())
	return nil
}

func (fs *Fs) Retrieve(scanId string, name string) (*models.ExportedDocument, error) {
	p, err := fs.path(scanId, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &models.ExportedDocument{
		Name:       name,
		Path:       p,
		ScanId:     scanId,
		ExportedAt: st.ModTime(),
		Reader:     bytes.NewReader(b),
	}, nil
}
