package extract

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"docchat-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

// buildPDF writes a single-page PDF whose content stream shows text with Tj.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"pdf", "resume.PDF", TypePDF},
		{"text", "notes.txt", TypeText},
		{"markdown", "README.md", TypeMarkdown},
		{"unknown", "image.png", ""},
		{"no extension", "Makefile", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.filename))
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses spaces", "a   b\t\tc", "a b c"},
		{"collapses blank runs", "one\n\n\n\n two", "one\n\ntwo"},
		{"trims leading and trailing blank lines", "\n\n  x  \n\n", "x"},
		{"normalizes CRLF", "a\r\nb\r\n\r\n\r\nc", "a\nb\n\nc"},
		{"whitespace only", " \n\t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Clean(got))
		})
	}
}

func TestExtractText(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())

	got := e.Extract([]byte("Hello   world\n\n\n\nSecond paragraph"), "doc.txt")
	assert.Equal(t, "Hello world\n\nSecond paragraph", got)
}

func TestExtractReplacesInvalidUTF8(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())

	got := e.Extract([]byte("caf\xe9 au lait"), "menu.md")
	assert.Equal(t, "caf� au lait", got)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())
	assert.Equal(t, "", e.Extract([]byte("binary"), "photo.jpg"))
}

func TestExtractPDFRejectsTinyInput(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())
	assert.Equal(t, "", e.Extract([]byte("%PDF-1.4 tiny"), "tiny.pdf"))
}

func TestExtractPDFGarbageDoesNotPanic(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())
	garbage := []byte("%PDF-1.7\n" + strings.Repeat("\x00\xff garbage ", 40))

	assert.NotPanics(t, func() {
		assert.Equal(t, "", e.Extract(garbage, "broken.pdf"))
	})
}

func TestExtractPDF(t *testing.T) {
	e := NewExtractor(logger.NewNopLogger())
	sentence := "Bachelor of Science in Computer Engineering from Example University"

	got := e.Extract(buildPDF(sentence), "cv.pdf")
	assert.Contains(t, got, "Example University")
}
