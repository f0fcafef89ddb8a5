package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tempPrefix = ".upload-"

// LocalStore keeps documents under <root>/<session>/<name>.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) sessionDir(session string) string {
	return filepath.Join(s.root, SanitizeSession(session))
}

func (s *LocalStore) List(ctx context.Context, session string) ([]Document, error) {
	entries, err := os.ReadDir(s.sessionDir(session))
	if errors.Is(err, fs.ErrNotExist) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !AllowedExtension(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		docs = append(docs, newDocument(entry.Name(), info.Size(), info.ModTime()))
	}

	sortDocuments(docs)
	return docs, nil
}

// Upload writes to a temp file in the same directory and renames it into
// place, so readers never observe a partial document.
func (s *LocalStore) Upload(ctx context.Context, session, name string, data []byte) (Document, error) {
	dir := s.sessionDir(session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return Document{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Document{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Document{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Document{}, fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		return Document{}, fmt.Errorf("rename into place: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return Document{}, fmt.Errorf("stat document: %w", err)
	}
	return newDocument(name, info.Size(), info.ModTime()), nil
}

func (s *LocalStore) Fetch(ctx context.Context, session, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(session), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, session, name string) error {
	err := os.Remove(filepath.Join(s.sessionDir(session), name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context, session string) error {
	if err := os.RemoveAll(s.sessionDir(session)); err != nil {
		return fmt.Errorf("clear session dir: %w", err)
	}
	return nil
}
