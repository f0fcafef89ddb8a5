package index

import (
	"context"
	"errors"
	"fmt"

	"docchat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgvectorRepository keeps fragments with their embeddings in postgres.
// Save swaps the snapshot row and all fragments inside one transaction.
type PgvectorRepository struct {
	db *gorm.DB
}

var _ Repository = (*PgvectorRepository)(nil)

func NewPgvectorRepository(db *gorm.DB) *PgvectorRepository {
	return &PgvectorRepository{db: db}
}

func (r *PgvectorRepository) Load(ctx context.Context, session string) (*Index, error) {
	var snap model.IndexSnapshot
	err := r.db.WithContext(ctx).Where("session = ?", session).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}

	var rows []model.IndexFragment
	err = r.db.WithContext(ctx).
		Where("session = ?", session).
		Order("ordinal ASC, chunk ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load index fragments: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrCorrupt
	}

	idx := &Index{
		Fingerprint: snap.Fingerprint,
		Embedder:    snap.Embedder,
		ModelState:  []byte(snap.ModelState),
		BuiltAt:     snap.BuiltAt,
		Fragments:   make([]Fragment, len(rows)),
	}
	for i, row := range rows {
		idx.Fragments[i] = Fragment{
			Document: row.Document,
			Ordinal:  row.Ordinal,
			Chunk:    row.Chunk,
			Text:     row.Content,
			Vector:   row.Vector.Slice(),
		}
	}
	return idx, nil
}

func (r *PgvectorRepository) Save(ctx context.Context, session string, idx *Index) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSession(tx, session); err != nil {
			return err
		}

		snap := model.IndexSnapshot{
			Session:     session,
			Fingerprint: idx.Fingerprint,
			Embedder:    idx.Embedder,
			ModelState:  []byte(idx.ModelState),
			BuiltAt:     idx.BuiltAt,
		}
		if err := tx.Create(&snap).Error; err != nil {
			return fmt.Errorf("insert index snapshot: %w", err)
		}

		rows := make([]model.IndexFragment, len(idx.Fragments))
		for i, f := range idx.Fragments {
			rows[i] = model.IndexFragment{
				Session:  session,
				Document: f.Document,
				Ordinal:  f.Ordinal,
				Chunk:    f.Chunk,
				Content:  f.Text,
				Vector:   pgvector.NewVector(f.Vector),
			}
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert index fragments: %w", err)
		}
		return nil
	})
}

func (r *PgvectorRepository) Drop(ctx context.Context, session string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSession(tx, session)
	})
}

func deleteSession(tx *gorm.DB, session string) error {
	if err := tx.Where("session = ?", session).Delete(&model.IndexFragment{}).Error; err != nil {
		return fmt.Errorf("delete index fragments: %w", err)
	}
	if err := tx.Where("session = ?", session).Delete(&model.IndexSnapshot{}).Error; err != nil {
		return fmt.Errorf("delete index snapshot: %w", err)
	}
	return nil
}
