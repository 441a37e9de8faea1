// Package extract provides plain-text extraction from invoice documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractionError reports an unreadable or corrupt input document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// supportedExtensions are the invoice document formats the extractor accepts.
var supportedExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md"}

// Extractor extracts plain text from invoice document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions returns the accepted file extensions (with leading dot).
func (e *Extractor) SupportedExtensions() []string {
	return supportedExtensions
}

// Supported reports whether ext (with leading dot, any case) is an accepted format.
func (e *Extractor) Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range supportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Failures are reported as *ExtractionError.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	text, err := e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension
// (with leading dot). Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}
