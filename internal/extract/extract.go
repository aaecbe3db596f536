// Package extract turns uploaded document bytes into plain text.
// Downstream stages only ever see extracted text; format handling
// stops at this boundary.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates no extractor is registered for the
	// document's format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument indicates the bytes do not parse as the
	// declared format.
	ErrCorruptDocument = errors.New("corrupt document")
)

// Format identifies a document's source format.
type Format string

const (
	FormatPlainText   Format = "plain-text"
	FormatPDF         Format = "pdf"
	FormatWord        Format = "word"
	FormatSlideDeck   Format = "slide-deck"
	FormatSpreadsheet Format = "spreadsheet"
)

// extensionFormats maps lowercase file extensions to formats. Markdown
// and source files are treated as plain text since their raw bytes are
// already readable.
var extensionFormats = map[string]Format{
	".txt":  FormatPlainText,
	".md":   FormatPlainText,
	".text": FormatPlainText,
	".log":  FormatPlainText,
	".json": FormatPlainText,
	".yaml": FormatPlainText,
	".yml":  FormatPlainText,
	".xml":  FormatPlainText,
	".html": FormatPlainText,
	".pdf":  FormatPDF,
	".doc":  FormatWord,
	".docx": FormatWord,
	".ppt":  FormatSlideDeck,
	".pptx": FormatSlideDeck,
	".xls":  FormatSpreadsheet,
	".xlsx": FormatSpreadsheet,
	".csv":  FormatSpreadsheet,
}

// DetectFormat resolves a document format from a filename extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := extensionFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	return format, nil
}

// Extractor converts raw document bytes of one format into plain text.
type Extractor interface {
	Extract(raw []byte) (string, error)
}

// Registry dispatches extraction by format.
type Registry struct {
	extractors map[Format]Extractor
}

// NewRegistry returns a registry with the built-in extractors
// installed. Binary formats without a wired parser are reported as
// unsupported at extraction time.
func NewRegistry() *Registry {
	return &Registry{
		extractors: map[Format]Extractor{
			FormatPlainText:   PlainText{},
			FormatSpreadsheet: CSV{},
		},
	}
}

// Register installs or replaces the extractor for a format.
func (r *Registry) Register(format Format, e Extractor) {
	r.extractors[format] = e
}

// Text extracts plain text from raw bytes of the declared format.
func (r *Registry) Text(raw []byte, format Format) (string, error) {
	extractor, ok := r.extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	text, err := extractor.Extract(raw)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	return text, nil
}

// Supports reports whether an extractor is registered for the format.
func (r *Registry) Supports(format Format) bool {
	_, ok := r.extractors[format]
	return ok
}
