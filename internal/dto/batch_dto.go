package dto

import "time"

type StartBatchRequest struct {
	Subject string `json:"subject"`
}

type StartBatchResponse struct {
	JobStarted   bool      `json:"job_started"`
	JobID        string    `json:"job_id,omitempty"`
	TotalReports int       `json:"total_reports"`
	Subject      string    `json:"subject,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

type PendingReportsDTO struct {
	PendingReports int64            `json:"pending_reports"`
	Subject        string           `json:"subject,omitempty"`
	Breakdown      map[string]int64 `json:"breakdown,omitempty"`
}
