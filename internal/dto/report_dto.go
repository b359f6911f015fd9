package dto

import (
	"time"

	"github.com/google/uuid"
)

type SubmitReportRequest struct {
	StudentID uuid.UUID         `json:"student_id"`
	Subject   string            `json:"subject"`
	Answers   map[string]string `json:"answers"`
}

type ReportDTO struct {
	ID             uuid.UUID         `json:"id"`
	StudentID      uuid.UUID         `json:"student_id"`
	Subject        string            `json:"subject"`
	WeekStart      time.Time         `json:"week_start"`
	WeekEnd        time.Time         `json:"week_end"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	Answers        map[string]string `json:"answers"`
	FeedbackStatus string            `json:"feedback_status"`
}

type WeekDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ReportOverviewDTO struct {
	Subjects           []string        `json:"subjects"`
	Reports            []ReportDTO     `json:"reports"`
	CanSubmitBySubject map[string]bool `json:"can_submit_by_subject"`
	CurrentWeek        WeekDTO         `json:"current_week"`
}
