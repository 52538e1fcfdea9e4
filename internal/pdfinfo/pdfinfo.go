// Package pdfinfo inspects uploaded PDFs before they are shipped to the
// render service, so junk uploads fail fast.
package pdfinfo

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// PageCount parses the PDF and returns its page count. An error means
// the bytes are not a readable PDF.
func PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return 0, fmt.Errorf("not a PDF file")
	}
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	n := reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
