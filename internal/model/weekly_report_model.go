package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeeklyReport is unique per (student, subject, week start) among rows that
// have not been superseded by an administrative correction.
type WeeklyReport struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_report_student_subject_week,where:superseded_at IS NULL" json:"student_id"`
	Subject      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_report_student_subject_week,where:superseded_at IS NULL;index" json:"subject"`
	WeekStart    time.Time      `gorm:"not null;uniqueIndex:idx_report_student_subject_week,where:superseded_at IS NULL" json:"week_start"`
	WeekEnd      time.Time      `gorm:"not null" json:"week_end"`
	SubmittedAt  time.Time      `gorm:"not null" json:"submitted_at"`
	SupersededAt *time.Time     `json:"superseded_at,omitempty"`
	Answers      []ReportAnswer `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"answers"`
	Feedback     *Feedback      `gorm:"foreignKey:ReportID" json:"feedback,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (WeeklyReport) TableName() string {
	return "weekly_reports"
}

func (r *WeeklyReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AnswerMap returns answers keyed by question id.
func (r *WeeklyReport) AnswerMap() map[string]string {
	out := make(map[string]string, len(r.Answers))
	for _, a := range r.Answers {
		out[a.QuestionID] = a.Answer
	}
	return out
}

type ReportAnswer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ReportID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answer_report_question" json:"-"`
	QuestionID string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_answer_report_question" json:"question_id"`
	Answer     string    `gorm:"type:text" json:"answer"`
}

func (ReportAnswer) TableName() string {
	return "report_answers"
}

func (a *ReportAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
