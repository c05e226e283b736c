package dto

// UploadSheetRequest accompanies the scanned pages of one student's sheet.
// Students are addressed by roll number here because that is what is written
// on physical sheets.
type UploadSheetRequest struct {
	RollNo           string `json:"rollNo" form:"rollNo" validate:"required"`
	CourseName       string `json:"courseName" form:"courseName" validate:"required"`
	SheetType        string `json:"sheetType" form:"sheetType" validate:"required,oneof=MIDTERM ENDTERM ASSIGNMENT"`
	AssignmentNumber *int   `json:"assignmentNumber" form:"assignmentNumber" validate:"omitempty,min=1"`
}

// BulkUploadRequest accompanies a zip archive of scanned sheets, one top-level
// folder per roll number.
type BulkUploadRequest struct {
	CourseName       string `json:"courseName" form:"courseName" validate:"required"`
	SheetType        string `json:"sheetType" form:"sheetType" validate:"required,oneof=MIDTERM ENDTERM ASSIGNMENT"`
	AssignmentNumber *int   `json:"assignmentNumber" form:"assignmentNumber" validate:"omitempty,min=1"`
}
