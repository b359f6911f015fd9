package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository requires Postgres with the vector extension.
type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db}
}

func (r *EmbeddingRepository) Upsert(ctx context.Context, e *model.ReportEmbedding) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
	}).Create(e).Error
}

// SimilarReports returns ids of the student's reports in subject from weeks
// before the given one, ordered by vector distance to embedding.
func (r *EmbeddingRepository) SimilarReports(ctx context.Context, studentID uuid.UUID, subject string, embedding pgvector.Vector, before time.Time, topK int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(`
        SELECT report_id
        FROM report_embeddings
        WHERE student_id = ? AND subject = ? AND week_start < ?
        ORDER BY embedding <-> ?
        LIMIT ?
    `, studentID, subject, before.UTC(), embedding, topK).Scan(&ids).Error
	return ids, err
}
