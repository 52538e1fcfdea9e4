package pdfinfo

import (
	"strings"
	"testing"
)

func TestPageCountRejectsNonPDF(t *testing.T) {
	_, err := PageCount([]byte("hello world"))
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if !strings.Contains(err.Error(), "not a PDF") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPageCountRejectsTruncatedPDF(t *testing.T) {
	// Right magic, no cross-reference table or trailer.
	_, err := PageCount([]byte("%PDF-1.4\njunk"))
	if err == nil {
		t.Fatal("expected error for truncated PDF")
	}
}

func TestPageCountRejectsEmpty(t *testing.T) {
	if _, err := PageCount(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
