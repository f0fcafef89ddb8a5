package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"docchat-be/internal/pkg/logger"

	"github.com/ledongthuc/pdf"
)

const (
	TypePDF      = "pdf"
	TypeText     = "text"
	TypeMarkdown = "markdown"

	// Anything shorter cannot hold a PDF header, body and trailer.
	minPDFBytes = 100
	// Below this the plain pass probably lost the layout; retry row by row.
	minPlainTextChars = 50
)

// TypeOf maps a filename extension to a document type. Unknown extensions yield "".
func TypeOf(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return TypePDF
	case "txt":
		return TypeText
	case "md", "markdown":
		return TypeMarkdown
	default:
		return ""
	}
}

type Extractor struct {
	logger logger.ILogger
}

func NewExtractor(logger logger.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the cleaned text of a document. It never fails: unreadable
// input yields "" and the reason is logged.
func (e *Extractor) Extract(data []byte, filename string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("EXTRACT", "Extraction panicked", map[string]interface{}{
				"file":  filename,
				"panic": fmt.Sprint(r),
			})
			text = ""
		}
	}()

	switch TypeOf(filename) {
	case TypePDF:
		return e.extractPDF(data, filename)
	case TypeText, TypeMarkdown:
		return Clean(strings.ToValidUTF8(string(data), "�"))
	default:
		e.logger.Debug("EXTRACT", "Unsupported document type", map[string]interface{}{"file": filename})
		return ""
	}
}

func (e *Extractor) extractPDF(data []byte, filename string) string {
	if len(data) < minPDFBytes {
		e.logger.Warn("EXTRACT", "PDF too small to be valid", map[string]interface{}{
			"file": filename,
			"size": len(data),
		})
		return ""
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("EXTRACT", "Failed to open PDF", map[string]interface{}{
			"file":  filename,
			"error": err,
		})
		return ""
	}

	plain := Clean(e.collectPages(reader, filename, plainPage))
	if len([]rune(plain)) >= minPlainTextChars {
		return plain
	}

	e.logger.Info("EXTRACT", "Plain PDF text too short, retrying in layout mode", map[string]interface{}{
		"file":  filename,
		"chars": len([]rune(plain)),
	})
	layout := Clean(e.collectPages(reader, filename, layoutPage))
	if len([]rune(layout)) > len([]rune(plain)) {
		return layout
	}
	return plain
}

type pageReader func(p pdf.Page) (string, error)

func (e *Extractor) collectPages(reader *pdf.Reader, filename string, read pageReader) string {
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := readPage(reader, i, read)
		if err != nil {
			e.logger.Debug("EXTRACT", "Skipping unreadable page", map[string]interface{}{
				"file":  filename,
				"page":  i,
				"error": err,
			})
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// readPage isolates a single page so a malformed one does not abort the rest.
func readPage(reader *pdf.Reader, num int, read pageReader) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return read(page)
}

func plainPage(p pdf.Page) (string, error) {
	return p.GetPlainText(nil)
}

func layoutPage(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
