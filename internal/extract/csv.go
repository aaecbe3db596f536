package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSV extracts spreadsheet data stored as comma-separated values. Each
// row becomes one line with cells joined by a single space, so row
// contents stay adjacent for chunking and retrieval.
type CSV struct{}

func (CSV) Extract(raw []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	reader.FieldsPerRecord = -1 // ragged rows are common in exports

	var sb strings.Builder
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(record, " "))
	}
	return sb.String(), nil
}
