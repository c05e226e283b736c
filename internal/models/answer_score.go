package models

import "time"

// AnswerScore is the persisted per-question outcome of one evaluation run.
// Exactly one of EnrolmentID (exam sheets) or AssignmentSubmissionID is set.
// Re-evaluating a sheet type replaces the full set for that owner and type.
type AnswerScore struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	EnrolmentID            *uint     `gorm:"index" json:"enrolment_id,omitempty"`
	AssignmentSubmissionID *uint     `gorm:"index" json:"assignment_submission_id,omitempty"`
	QuestionLabel          string    `gorm:"size:16;not null" json:"question_label"`
	ObtainedMarks          float64   `gorm:"not null" json:"obtained_marks"`
	TotalMarks             float64   `gorm:"not null" json:"total_marks"`
	AnswerText             string    `gorm:"type:text" json:"answer_text"`
	Feedback               string    `gorm:"type:text" json:"feedback"`
	SheetType              SheetType `gorm:"size:16;not null;index" json:"sheet_type"`
	CreatedAt              time.Time `json:"created_at"`
}
