package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ReportEmbedding is only migrated on Postgres (pgvector extension).
type ReportEmbedding struct {
	ReportID  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"report_id"`
	StudentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"student_id"`
	Subject   string          `gorm:"type:varchar(100);index" json:"subject"`
	WeekStart time.Time       `json:"week_start"`
	Embedding pgvector.Vector `gorm:"type:vector(3072)" json:"embedding"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r *ReportEmbedding) TableName() string {
	return "report_embeddings"
}
