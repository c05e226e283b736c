package dto

import "github.com/autoeval/autoeval-go-api/internal/models"

// EvaluateSheetRequest asks for one student's sheet to be evaluated.
type EvaluateSheetRequest struct {
	StudentUsername  string `json:"studentUsername" validate:"required"`
	CourseName       string `json:"courseName" validate:"required"`
	SheetType        string `json:"sheetType" validate:"required,oneof=MIDTERM ENDTERM ASSIGNMENT"`
	AssignmentNumber *int   `json:"assignmentNumber" validate:"omitempty,min=1"`
}

// BulkEvaluateRequest asks for every enrolled student in a course to be
// evaluated for one sheet type.
type BulkEvaluateRequest struct {
	CourseName       string `json:"courseName" validate:"required"`
	SheetType        string `json:"sheetType" validate:"required,oneof=MIDTERM ENDTERM ASSIGNMENT"`
	AssignmentNumber *int   `json:"assignmentNumber" validate:"omitempty,min=1"`
}

// AnswerScoreResponse is one persisted per-question score.
type AnswerScoreResponse struct {
	QuestionLabel string  `json:"question_label"`
	ObtainedMarks float64 `json:"obtained_marks"`
	TotalMarks    float64 `json:"total_marks"`
	AnswerText    string  `json:"answer_text"`
	Feedback      string  `json:"feedback"`
	SheetType     string  `json:"sheet_type"`
}

// NewAnswerScoreResponse maps a persisted score row to its API shape.
func NewAnswerScoreResponse(score models.AnswerScore) AnswerScoreResponse {
	return AnswerScoreResponse{
		QuestionLabel: score.QuestionLabel,
		ObtainedMarks: score.ObtainedMarks,
		TotalMarks:    score.TotalMarks,
		AnswerText:    score.AnswerText,
		Feedback:      score.Feedback,
		SheetType:     string(score.SheetType),
	}
}

// NewAnswerScoreResponseSlice maps a score set to its API shape.
func NewAnswerScoreResponseSlice(scores []models.AnswerScore) []AnswerScoreResponse {
	out := make([]AnswerScoreResponse, 0, len(scores))
	for _, score := range scores {
		out = append(out, NewAnswerScoreResponse(score))
	}
	return out
}

// ParsedAnswerResponse is one segmented answer from a stored transcript,
// before any scoring has happened.
type ParsedAnswerResponse struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}
