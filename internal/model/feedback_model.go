package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FeedbackStatus string

const (
	FeedbackNone        FeedbackStatus = "none"
	FeedbackAIGenerated FeedbackStatus = "ai_generated"
	FeedbackUnderReview FeedbackStatus = "under_review"
	FeedbackApproved    FeedbackStatus = "approved"
	FeedbackSent        FeedbackStatus = "sent"
)

// Feedback is zero-or-one per WeeklyReport. A report without a row is in
// state FeedbackNone. Version guards concurrent instructor actions.
type Feedback struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"report_id"`
	StudentID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Subject              string         `gorm:"type:varchar(100);index" json:"subject"`
	Status               FeedbackStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Content              string         `gorm:"type:text" json:"content"`
	ProgressScore        *float64       `json:"progress_score,omitempty"`
	RequiresReview       bool           `json:"requires_review"`
	ModifiedByInstructor bool           `json:"modified_by_instructor"`
	InstructorNotes      string         `gorm:"type:text" json:"instructor_notes,omitempty"`
	Provider             string         `gorm:"type:varchar(100)" json:"provider"`
	Cost                 float64        `json:"cost"`
	ReviewedBy           *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty"`
	LastModifiedBy       *uuid.UUID     `gorm:"type:uuid" json:"last_modified_by,omitempty"`
	LastModifiedAt       *time.Time     `json:"last_modified_at,omitempty"`
	SentBy               *uuid.UUID     `gorm:"type:uuid" json:"sent_by,omitempty"`
	SentAt               *time.Time     `json:"sent_at,omitempty"`
	Version              int            `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
