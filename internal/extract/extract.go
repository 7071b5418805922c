// Package extract turns uploaded document bytes into plain text for the
// ingestion pipeline. PDF files are parsed; anything else is treated as
// UTF-8 text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Text extracts the plain text of an uploaded document, keyed off the
// filename extension.
func Text(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("document %s is empty", filename)
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return pdfText(filename, data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document %s is not valid UTF-8 text", filename)
	}
	return string(data), nil
}

// pdfText reads every page's plain text. The pdf package panics on some
// malformed files, so the recover turns those into errors.
func pdfText(filename string, data []byte) (_ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", filename, err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", filename, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("extract text from %s: %w", filename, err)
	}
	return buf.String(), nil
}
