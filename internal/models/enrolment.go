package models

import "time"

// Enrolment ties a student to a course and owns the OCR transcripts and totals
// for the exam sheets of that pairing. Assignment sheets hang off their own
// submission records.
type Enrolment struct {
	ID               uint                   `gorm:"primaryKey" json:"id"`
	StudentID        uint                   `gorm:"not null;uniqueIndex:idx_enrolment_subject" json:"student_id"`
	CourseID         uint                   `gorm:"not null;uniqueIndex:idx_enrolment_subject" json:"course_id"`
	MidtermSheetText string                 `gorm:"type:text" json:"midterm_sheet_text"`
	EndtermSheetText string                 `gorm:"type:text" json:"endterm_sheet_text"`
	MidtermMarks     *float64               `json:"midterm_marks"`
	EndtermMarks     *float64               `json:"endterm_marks"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Student          Student                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Course           Course                 `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	AnswerScores     []AnswerScore          `gorm:"foreignKey:EnrolmentID" json:"answer_scores,omitempty"`
	Assignments      []AssignmentSubmission `gorm:"foreignKey:EnrolmentID" json:"assignments,omitempty"`
}

// SheetText returns the stored transcript for an exam sheet type. Assignment
// transcripts live on AssignmentSubmission instead.
func (e Enrolment) SheetText(t SheetType) string {
	switch t {
	case SheetTypeMidterm:
		return e.MidtermSheetText
	case SheetTypeEndterm:
		return e.EndtermSheetText
	}
	return ""
}

// AssignmentSubmission is one student's uploaded sheet for a numbered assignment.
type AssignmentSubmission struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	EnrolmentID      uint          `gorm:"not null;uniqueIndex:idx_assignment_submission" json:"enrolment_id"`
	AssignmentNumber int           `gorm:"not null;uniqueIndex:idx_assignment_submission" json:"assignment_number"`
	SheetText        string        `gorm:"type:text" json:"sheet_text"`
	Marks            *float64      `json:"marks"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	AnswerScores     []AnswerScore `gorm:"foreignKey:AssignmentSubmissionID" json:"answer_scores,omitempty"`
}
