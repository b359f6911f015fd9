package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"gorm.io/gorm"
)

// EnrollmentFilter restricts the student pool. Empty fields match anything.
type EnrollmentFilter struct {
	Subject      string
	Division     string
	AcademicYear string
	Campus       string
}

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db}
}

func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *StudentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	var s model.Student
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StudentRepository) GetSubjects(ctx context.Context, id uuid.UUID) ([]string, error) {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Subjects, nil
}

// ListEnrolled returns active students matching f in enrolment order.
// Subject membership is checked in Go because the JSON column differs
// between sqlite and postgres.
func (r *StudentRepository) ListEnrolled(ctx context.Context, f EnrollmentFilter) ([]model.Student, error) {
	q := r.db.WithContext(ctx).
		Where("role = ? AND status = ?", model.RoleStudent, model.StatusActive)
	if f.Division != "" {
		q = q.Where("division = ?", f.Division)
	}
	if f.AcademicYear != "" {
		q = q.Where("academic_year = ?", f.AcademicYear)
	}
	if f.Campus != "" {
		q = q.Where("campus = ?", f.Campus)
	}

	var students []model.Student
	if err := q.Order("created_at ASC").Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	if f.Subject == "" {
		return students, nil
	}
	out := students[:0]
	for _, s := range students {
		if s.IsEnrolled(f.Subject) {
			out = append(out, s)
		}
	}
	return out, nil
}
