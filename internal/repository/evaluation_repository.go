package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"gorm.io/gorm"
)

type EvaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{db}
}

func (r *EvaluationRepository) Create(ctx context.Context, e *model.Evaluation) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *EvaluationRepository) Update(ctx context.Context, e *model.Evaluation) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Evaluation, error) {
	var e model.Evaluation
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *EvaluationRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("exam_date DESC").
		Find(&evals).Error
	return evals, err
}
