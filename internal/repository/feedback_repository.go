package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"gorm.io/gorm"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *model.Feedback) error {
	return translate(r.db.WithContext(ctx).Create(f).Error)
}

func (r *FeedbackRepository) FindByReportID(ctx context.Context, reportID uuid.UUID) (*model.Feedback, error) {
	var f model.Feedback
	if err := r.db.WithContext(ctx).First(&f, "report_id = ?", reportID).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// UpdateVersioned applies fields only if the row still has f.Version, then
// bumps the version. A concurrent writer makes it return ErrStaleVersion.
func (r *FeedbackRepository) UpdateVersioned(ctx context.Context, f *model.Feedback, fields map[string]any) error {
	fields["version"] = f.Version + 1
	res := r.db.WithContext(ctx).Model(&model.Feedback{}).
		Where("id = ? AND version = ?", f.ID, f.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
