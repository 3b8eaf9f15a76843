package interfaces

import (
	"context"
)

// PDFPageContent represents extracted content from a single PDF page
type PDFPageContent struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PDFExtractor defines the interface for extracting text from PDF
// documents, used for uploaded resumes
type PDFExtractor interface {
	// ExtractText extracts all text content from a PDF file on disk.
	// Returns the full text content concatenated from all pages.
	ExtractText(ctx context.Context, path string) (string, error)

	// ExtractPages extracts text content by page from a PDF.
	// Returns a slice of PDFPageContent with page numbers and text.
	ExtractPages(ctx context.Context, path string) ([]PDFPageContent, error)
}
