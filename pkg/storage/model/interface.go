package model

import "github.com/denysvitali/odi-scan/pkg/models"

// Storer archives an exported document. doc.Reader holds the PDF bytes.
type Storer interface {
	Store(doc models.ExportedDocument) error
}

// Retriever reads an archived document back. The returned document's
// Reader holds the PDF bytes.
type Retriever interface {
	Retrieve(scanId string, name string) (*models.ExportedDocument, error)
}

type RWStorage interface {
	Storer
	Retriever
}
