package dto

type FeedbackActionRequest struct {
	Action          string `json:"action"`
	InstructorNotes string `json:"instructor_notes"`
	ModifiedContent string `json:"modified_content"`
}
