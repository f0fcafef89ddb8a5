package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/docstore"
)

const (
	memoryFile  = "user_memory.json"
	historyFile = "conversation_history.json"
)

// FileStore keeps <dir>/<user>/user_memory.json and conversation_history.json.
// Every write goes to a temp file first and is renamed into place.
type FileStore struct {
	dir    string
	logger logger.ILogger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string, logger logger.ILogger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) userDir(user string) string {
	return filepath.Join(s.dir, docstore.SanitizeSession(user))
}

func (s *FileStore) Load(ctx context.Context, user string) (*UserMemory, error) {
	data, err := os.ReadFile(filepath.Join(s.userDir(user), memoryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	return decodeMemory(data, user, s.logger), nil
}

func (s *FileStore) Save(ctx context.Context, user string, m *UserMemory) error {
	return s.writeJSON(user, memoryFile, m)
}

func (s *FileStore) AppendTurn(ctx context.Context, user string, turn Turn, max int) error {
	turns, err := s.readHistory(user)
	if err != nil {
		return err
	}
	turns = lastN(append(turns, turn), max)
	return s.writeJSON(user, historyFile, turns)
}

func (s *FileStore) History(ctx context.Context, user string, limit int) ([]Turn, error) {
	turns, err := s.readHistory(user)
	if err != nil {
		return nil, err
	}
	return lastN(turns, limit), nil
}

func (s *FileStore) Reset(ctx context.Context, user string) error {
	if err := os.RemoveAll(s.userDir(user)); err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	return nil
}

func (s *FileStore) readHistory(user string) ([]Turn, error) {
	data, err := os.ReadFile(filepath.Join(s.userDir(user), historyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		s.logger.Warn("MEMORY", "Conversation history is corrupt, starting fresh", map[string]interface{}{
			"user":  user,
			"error": err.Error(),
		})
		return []Turn{}, nil
	}
	return turns, nil
}

func (s *FileStore) writeJSON(user, name string, v interface{}) error {
	dir := s.userDir(user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
