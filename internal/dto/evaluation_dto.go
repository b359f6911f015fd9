package dto

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationDTO struct {
	ID              uuid.UUID `json:"id"`
	StudentID       uuid.UUID `json:"student_id"`
	StudentName     string    `json:"student_name,omitempty"`
	Subject         string    `json:"subject"`
	ExamTopic       string    `json:"exam_topic"`
	ExamDate        time.Time `json:"exam_date"`
	Score           float64   `json:"score"`
	Feedback        string    `json:"feedback"`
	MatchConfidence float64   `json:"match_confidence"`
	APICost         float64   `json:"api_cost"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CorrectEvaluationRequest struct {
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

type MatchCandidateDTO struct {
	StudentID  uuid.UUID `json:"student_id"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Ambiguous  bool      `json:"ambiguous"`
}
