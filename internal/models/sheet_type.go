package models

// SheetType identifies which answer sheet of an enrolment is being referenced.
type SheetType string

const (
	// SheetTypeMidterm is the midterm examination sheet.
	SheetTypeMidterm SheetType = "MIDTERM"
	// SheetTypeEndterm is the endterm examination sheet.
	SheetTypeEndterm SheetType = "ENDTERM"
	// SheetTypeAssignment is a numbered assignment submission sheet.
	SheetTypeAssignment SheetType = "ASSIGNMENT"
)

// Valid reports whether the value is one of the known sheet types.
func (t SheetType) Valid() bool {
	switch t {
	case SheetTypeMidterm, SheetTypeEndterm, SheetTypeAssignment:
		return true
	}
	return false
}

// RequiresAssignmentNumber reports whether operations on this sheet type need an
// assignment number to disambiguate the submission.
func (t SheetType) RequiresAssignmentNumber() bool {
	return t == SheetTypeAssignment
}
