package dto

// Event type values pushed to teacher channels. The *_SUCCESS/*_FAILURE pairs
// terminate single-subject jobs; the BULK_* types track whole-course runs.
const (
	EventMidtermEvaluationSuccess    = "MIDTERM_EVALUATION_SUCCESS"
	EventMidtermEvaluationFailure    = "MIDTERM_EVALUATION_FAILURE"
	EventEndtermEvaluationSuccess    = "ENDTERM_EVALUATION_SUCCESS"
	EventEndtermEvaluationFailure    = "ENDTERM_EVALUATION_FAILURE"
	EventAssignmentEvaluationSuccess = "ASSIGNMENT_EVALUATION_SUCCESS"
	EventAssignmentEvaluationFailure = "ASSIGNMENT_EVALUATION_FAILURE"

	EventMidtermUploadSuccess    = "MIDTERM_UPLOAD_SUCCESS"
	EventMidtermUploadFailure    = "MIDTERM_UPLOAD_FAILURE"
	EventEndtermUploadSuccess    = "ENDTERM_UPLOAD_SUCCESS"
	EventEndtermUploadFailure    = "ENDTERM_UPLOAD_FAILURE"
	EventAssignmentUploadSuccess = "ASSIGNMENT_UPLOAD_SUCCESS"
	EventAssignmentUploadFailure = "ASSIGNMENT_UPLOAD_FAILURE"

	EventBulkEvaluateProgress   = "BULK_EVALUATE_PROGRESS"
	EventBulkEvaluationComplete = "BULK_EVALUATION_COMPLETE"
	EventBulkUploadProgress     = "BULK_UPLOAD_PROGRESS"
	EventBulkUploadComplete     = "BULK_UPLOAD_COMPLETE"
	// The *_FATAL types mean the whole batch never ran, as opposed to a
	// per-student failure inside it.
	EventBulkEvaluationFatal = "BULK_EVALUATION_FATAL"
	EventBulkUploadFatal     = "BULK_UPLOAD_FATAL"
)

// Event is the flat payload delivered on a teacher's notification channel.
// Delivery is advisory and at most once; the persisted score set remains the
// source of truth.
type Event struct {
	Type             string   `json:"type"`
	StudentUsername  string   `json:"studentUsername,omitempty"`
	RollNo           string   `json:"rollNo,omitempty"`
	CourseName       string   `json:"courseName,omitempty"`
	SheetType        string   `json:"sheetType,omitempty"`
	TotalMarks       *float64 `json:"totalMarks,omitempty"`
	Marks            *float64 `json:"marks,omitempty"`
	AssignmentNumber *int     `json:"assignmentNumber,omitempty"`
	Progress         *int     `json:"progress,omitempty"`
	Message          string   `json:"message,omitempty"`
}
