package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// utf8BOM is stripped from the front of plain text uploads.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText extracts text files verbatim after validating the encoding.
type PlainText struct{}

// Extract validates that raw is well-formed UTF-8 text and returns it
// with normalized line endings.
func (PlainText) Extract(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrCorruptDocument)
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: embedded NUL byte", ErrCorruptDocument)
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return text, nil
}
