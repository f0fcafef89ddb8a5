package memory

import (
	"context"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/utils"
)

// FactExtractor learns facts from a completed turn.
type FactExtractor interface {
	Extract(ctx context.Context, question, answer string) (*UserMemory, error)
}

type ManagerConfig struct {
	MaxHistory   int
	ContextTurns int
}

// Manager serializes read-modify-write cycles per user.
type Manager struct {
	store     Store
	extractor FactExtractor
	cfg       ManagerConfig
	locks     *utils.KeyedMutex
	logger    logger.ILogger
	now       func() time.Time
}

// NewManager builds a Manager. extractor may be nil to use only rule-based extraction.
func NewManager(store Store, extractor FactExtractor, cfg ManagerConfig, logger logger.ILogger) *Manager {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 50
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 10
	}
	return &Manager{
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		locks:     utils.NewKeyedMutex(),
		logger:    logger,
		now:       time.Now,
	}
}

// Context returns the memory summary ("" when nothing is known) and the recent
// conversation transcript for prompting.
func (m *Manager) Context(ctx context.Context, user string) (summary, conversation string, err error) {
	mem, err := m.store.Load(ctx, user)
	if err != nil {
		return "", "", err
	}
	turns, err := m.store.History(ctx, user, m.cfg.ContextTurns)
	if err != nil {
		return "", "", err
	}

	if !mem.IsEmpty() {
		summary = mem.Summary()
	}
	return summary, FormatTurns(turns), nil
}

// Record learns from a completed turn and appends it to the history.
func (m *Manager) Record(ctx context.Context, user, question, answer string) error {
	unlock := m.locks.Lock(user)
	defer unlock()

	mem, err := m.store.Load(ctx, user)
	if err != nil {
		return err
	}

	changed := mem.Merge(ExtractRules(question))
	if m.extractor != nil {
		facts, err := m.extractor.Extract(ctx, question, answer)
		if err != nil {
			m.logger.Warn("MEMORY", "Model fact extraction skipped", map[string]interface{}{
				"user":  user,
				"error": err.Error(),
			})
		} else if mem.Merge(facts) {
			changed = true
		}
	}

	now := m.now().UTC()
	if changed {
		mem.LastUpdated = &now
		if err := m.store.Save(ctx, user, mem); err != nil {
			return err
		}
		m.logger.Debug("MEMORY", "User memory updated", map[string]interface{}{"user": user})
	}

	return m.store.AppendTurn(ctx, user, Turn{Timestamp: now, User: question, Assistant: answer}, m.cfg.MaxHistory)
}

func (m *Manager) Memory(ctx context.Context, user string) (*UserMemory, error) {
	return m.store.Load(ctx, user)
}

func (m *Manager) History(ctx context.Context, user string) ([]Turn, error) {
	return m.store.History(ctx, user, 0)
}

func (m *Manager) Reset(ctx context.Context, user string) error {
	unlock := m.locks.Lock(user)
	defer unlock()
	return m.store.Reset(ctx, user)
}
