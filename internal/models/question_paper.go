package models

import "time"

// QuestionPaper is the model-answer paper evaluations are scored against. One
// paper exists per (course, sheet type) and per assignment number for
// assignment papers.
type QuestionPaper struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	CourseID         uint       `gorm:"not null;index" json:"course_id"`
	SheetType        SheetType  `gorm:"size:16;not null" json:"sheet_type"`
	AssignmentNumber *int       `json:"assignment_number"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Course           Course     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Questions        []Question `gorm:"foreignKey:QuestionPaperID;constraint:OnDelete:CASCADE" json:"questions"`
}

// Question holds one question's number, model answer and maximum marks.
type Question struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	QuestionPaperID uint    `gorm:"not null;index" json:"question_paper_id"`
	Number          string  `gorm:"size:8;not null" json:"number"`
	CorrectAnswer   string  `gorm:"type:text" json:"correct_answer"`
	Marks           float64 `gorm:"not null" json:"marks"`
}
