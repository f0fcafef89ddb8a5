package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// IndexSnapshot is the header row of a persisted session index. Its fragments
// are replaced together with it inside one transaction.
type IndexSnapshot struct {
	Session     string         `gorm:"type:varchar(64);primaryKey"`
	Fingerprint string         `gorm:"type:varchar(64);not null"`
	Embedder    string         `gorm:"type:varchar(64);not null"`
	ModelState  datatypes.JSON `gorm:"type:jsonb"`
	BuiltAt     time.Time
}

func (IndexSnapshot) TableName() string {
	return "index_snapshots"
}

type IndexFragment struct {
	Id       uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Session  string          `gorm:"type:varchar(64);not null;index"`
	Document string          `gorm:"type:varchar(255);not null"`
	Ordinal  int             `gorm:"not null"`
	Chunk    int             `gorm:"default:0"` // 0-based position inside the document
	Content  string          `gorm:"type:text"`
	Vector   pgvector.Vector `gorm:"type:vector"` // dimension depends on the embedder
}

func (IndexFragment) TableName() string {
	return "index_fragments"
}
