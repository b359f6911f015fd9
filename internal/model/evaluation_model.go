package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Evaluation is an externally graded artifact (exam, practical) bound to one
// student by the matcher.
type Evaluation struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Subject         string         `gorm:"type:varchar(100);not null;index" json:"subject"`
	ExamTopic       string         `gorm:"type:varchar(255)" json:"exam_topic"`
	ExamDate        time.Time      `json:"exam_date"`
	Score           float64        `gorm:"not null;check:chk_evaluations_score,score >= 0 AND score <= 100" json:"score"`
	Feedback        string         `gorm:"type:text" json:"feedback"`
	SourceFile      string         `gorm:"type:varchar(255)" json:"source_file"`
	MatchConfidence float64        `json:"match_confidence"`
	CreatedBy       uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	APICost         float64        `json:"api_cost"`
	Usage           datatypes.JSON `json:"usage"`
	CorrectedBy     *uuid.UUID     `gorm:"type:uuid" json:"corrected_by,omitempty"`
	CorrectedAt     *time.Time     `json:"corrected_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

func (e *Evaluation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
