package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"docchat-be/pkg/extract"
)

const DefaultSession = "default"

var ErrNotFound = errors.New("document not found")

// Document describes one stored file. A session's DocumentSet is the slice
// returned by Store.List.
type Document struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps the raw uploaded bytes per session.
type Store interface {
	// List returns the session's documents ordered oldest first, ties broken by name.
	List(ctx context.Context, session string) ([]Document, error)
	Upload(ctx context.Context, session, name string, data []byte) (Document, error)
	Fetch(ctx context.Context, session, name string) ([]byte, error)
	// Delete returns ErrNotFound when the document does not exist.
	Delete(ctx context.Context, session, name string) error
	Clear(ctx context.Context, session string) error
}

var allowedExtensions = map[string]bool{
	"pdf": true,
	"txt": true,
	"md":  true,
}

func AllowedExtension(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return allowedExtensions[ext]
}

// SanitizeName reduces a client supplied filename to a safe base name.
// It returns "" when nothing usable is left.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var sb strings.Builder
	for _, field := range strings.Fields(name) {
		if sb.Len() > 0 {
			sb.WriteRune('_')
		}
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
				sb.WriteRune(r)
			}
		}
	}

	cleaned := strings.TrimLeft(sb.String(), "._")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return ""
	}
	if len(cleaned) > maxNameBytes {
		ext := filepath.Ext(cleaned)
		if len(ext) > maxExtBytes {
			ext = ""
		}
		cleaned = truncateRunes(strings.TrimSuffix(cleaned, ext), maxNameBytes-len(ext)) + ext
	}
	return cleaned
}

const (
	maxNameBytes = 200
	maxExtBytes  = 16
)

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SanitizeSession keeps letters, digits, '-' and '_'; anything else empty
// falls back to DefaultSession.
func SanitizeSession(session string) string {
	var sb strings.Builder
	for _, r := range session {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			sb.WriteRune(r)
		}
		if sb.Len() >= 64 {
			break
		}
	}
	if sb.Len() == 0 {
		return DefaultSession
	}
	return sb.String()
}

func newDocument(name string, size int64, updatedAt time.Time) Document {
	return Document{
		Name:      name,
		Type:      extract.TypeOf(name),
		Size:      size,
		UpdatedAt: updatedAt.UTC(),
	}
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
		}
		return docs[i].Name < docs[j].Name
	})
}
