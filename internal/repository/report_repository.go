package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"gorm.io/gorm"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db}
}

func (r *ReportRepository) FindReport(ctx context.Context, studentID uuid.UUID, subject string, weekStart time.Time) (*model.WeeklyReport, error) {
	var report model.WeeklyReport
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject = ? AND week_start = ? AND superseded_at IS NULL", studentID, subject, weekStart.UTC()).
		First(&report).Error
	if err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

// InsertReport stores the report and its answers in one transaction. The
// existence check is advisory; the unique index is what rejects a second
// report for the same week, reported as ErrUniqueViolation.
func (r *ReportRepository) InsertReport(ctx context.Context, report *model.WeeklyReport) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.WeeklyReport{}).
			Where("student_id = ? AND subject = ? AND week_start = ? AND superseded_at IS NULL",
				report.StudentID, report.Subject, report.WeekStart.UTC()).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrUniqueViolation
		}
		return tx.Create(report).Error
	})
	return translate(err)
}

func (r *ReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WeeklyReport, error) {
	var report model.WeeklyReport
	err := r.db.WithContext(ctx).
		Preload("Answers").
		Preload("Feedback").
		First(&report, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

func (r *ReportRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, subject string, page, pageSize int) ([]model.WeeklyReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.WeeklyReport{}).
		Where("student_id = ? AND superseded_at IS NULL", studentID)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []model.WeeklyReport
	err := q.Preload("Answers").
		Preload("Feedback").
		Order("week_start DESC").
		Order("subject ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reports).Error
	return reports, total, err
}

func (r *ReportRepository) pendingQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.WeeklyReport{}).
		Joins("LEFT JOIN feedback ON feedback.report_id = weekly_reports.id").
		Where("feedback.id IS NULL AND weekly_reports.superseded_at IS NULL")
}

// ListPendingForFeedback returns ids of reports with no feedback yet, oldest
// submission first.
func (r *ReportRepository) ListPendingForFeedback(ctx context.Context, subject string) ([]uuid.UUID, error) {
	q := r.pendingQuery(ctx)
	if subject != "" {
		q = q.Where("weekly_reports.subject = ?", subject)
	}
	var ids []uuid.UUID
	err := q.Order("weekly_reports.submitted_at ASC").
		Pluck("weekly_reports.id", &ids).Error
	return ids, err
}

func (r *ReportRepository) CountPendingBySubject(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Subject string
		Total   int64
	}
	err := r.pendingQuery(ctx).
		Select("weekly_reports.subject AS subject, COUNT(*) AS total").
		Group("weekly_reports.subject").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Subject] = row.Total
	}
	return out, nil
}

// PreviousReports returns the student's earlier reports in subject, newest
// first, with answers and feedback loaded.
func (r *ReportRepository) PreviousReports(ctx context.Context, studentID uuid.UUID, subject string, before time.Time, limit int) ([]model.WeeklyReport, error) {
	var reports []model.WeeklyReport
	err := r.db.WithContext(ctx).
		Preload("Answers").
		Preload("Feedback").
		Where("student_id = ? AND subject = ? AND week_start < ? AND superseded_at IS NULL", studentID, subject, before.UTC()).
		Order("week_start DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

func (r *ReportRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.WeeklyReport, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var reports []model.WeeklyReport
	err := r.db.WithContext(ctx).
		Preload("Answers").
		Preload("Feedback").
		Where("id IN ?", ids).
		Order("week_start DESC").
		Find(&reports).Error
	return reports, err
}
