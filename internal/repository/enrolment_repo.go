package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/models"
)

// EnrolmentRepository defines persistence operations for enrolments, their
// sheet transcripts and evaluation outcomes.
type EnrolmentRepository interface {
	GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (models.Enrolment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Enrolment, error)
	Create(ctx context.Context, enrolment *models.Enrolment) error
	SaveSheetText(ctx context.Context, enrolmentID uint, sheetType models.SheetType, text string) error
	GetAssignmentSubmission(ctx context.Context, enrolmentID uint, assignmentNumber int) (models.AssignmentSubmission, error)
	UpsertAssignmentSubmission(ctx context.Context, enrolmentID uint, assignmentNumber int, text string) (models.AssignmentSubmission, error)
	ReplaceScores(ctx context.Context, enrolmentID uint, sheetType models.SheetType, scores []models.AnswerScore, total float64) error
	ReplaceAssignmentScores(ctx context.Context, submissionID uint, scores []models.AnswerScore, total float64) error
	ListScores(ctx context.Context, enrolmentID uint, sheetType models.SheetType) ([]models.AnswerScore, error)
	ListAssignmentScores(ctx context.Context, submissionID uint) ([]models.AnswerScore, error)
}

type enrolmentRepository struct {
	db *gorm.DB
}

// NewEnrolmentRepository instantiates a GORM-backed repository.
func NewEnrolmentRepository(db *gorm.DB) EnrolmentRepository {
	return &enrolmentRepository{db: db}
}

func (r *enrolmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (models.Enrolment, error) {
	var enrolment models.Enrolment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Preload("Student").
		Preload("Course").
		First(&enrolment).Error
	if err != nil {
		return models.Enrolment{}, err
	}

	return enrolment, nil
}

func (r *enrolmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Enrolment, error) {
	var enrolments []models.Enrolment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Preload("Student").
		Order("id ASC").
		Find(&enrolments).Error
	if err != nil {
		return nil, err
	}

	return enrolments, nil
}

func (r *enrolmentRepository) Create(ctx context.Context, enrolment *models.Enrolment) error {
	return r.db.WithContext(ctx).Create(enrolment).Error
}

func (r *enrolmentRepository) SaveSheetText(ctx context.Context, enrolmentID uint, sheetType models.SheetType, text string) error {
	column := "midterm_sheet_text"
	if sheetType == models.SheetTypeEndterm {
		column = "endterm_sheet_text"
	}

	result := r.db.WithContext(ctx).
		Model(&models.Enrolment{}).
		Where("id = ?", enrolmentID).
		Update(column, text)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *enrolmentRepository) GetAssignmentSubmission(ctx context.Context, enrolmentID uint, assignmentNumber int) (models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	err := r.db.WithContext(ctx).
		Where("enrolment_id = ? AND assignment_number = ?", enrolmentID, assignmentNumber).
		First(&submission).Error
	if err != nil {
		return models.AssignmentSubmission{}, err
	}

	return submission, nil
}

func (r *enrolmentRepository) UpsertAssignmentSubmission(ctx context.Context, enrolmentID uint, assignmentNumber int, text string) (models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("enrolment_id = ? AND assignment_number = ?", enrolmentID, assignmentNumber).
			First(&submission).Error
		switch {
		case err == nil:
			submission.SheetText = text
			return tx.Model(&submission).Update("sheet_text", text).Error
		case err == gorm.ErrRecordNotFound:
			submission = models.AssignmentSubmission{
				EnrolmentID:      enrolmentID,
				AssignmentNumber: assignmentNumber,
				SheetText:        text,
			}
			return tx.Create(&submission).Error
		default:
			return err
		}
	})
	if err != nil {
		return models.AssignmentSubmission{}, err
	}

	return submission, nil
}

// ReplaceScores swaps the stored per-question scores for one exam sheet and
// updates the enrolment total in the same transaction, so readers never see a
// mix of old and new rows.
func (r *enrolmentRepository) ReplaceScores(ctx context.Context, enrolmentID uint, sheetType models.SheetType, scores []models.AnswerScore, total float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("enrolment_id = ? AND sheet_type = ?", enrolmentID, sheetType).
			Delete(&models.AnswerScore{}).Error
		if err != nil {
			return err
		}

		for i := range scores {
			scores[i].ID = 0
			scores[i].EnrolmentID = &enrolmentID
			scores[i].AssignmentSubmissionID = nil
			scores[i].SheetType = sheetType
		}
		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}

		column := "midterm_marks"
		if sheetType == models.SheetTypeEndterm {
			column = "endterm_marks"
		}

		return tx.Model(&models.Enrolment{}).
			Where("id = ?", enrolmentID).
			Update(column, total).Error
	})
}

// ReplaceAssignmentScores is the assignment counterpart of ReplaceScores.
func (r *enrolmentRepository) ReplaceAssignmentScores(ctx context.Context, submissionID uint, scores []models.AnswerScore, total float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("assignment_submission_id = ?", submissionID).
			Delete(&models.AnswerScore{}).Error
		if err != nil {
			return err
		}

		for i := range scores {
			scores[i].ID = 0
			scores[i].EnrolmentID = nil
			scores[i].AssignmentSubmissionID = &submissionID
			scores[i].SheetType = models.SheetTypeAssignment
		}
		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.AssignmentSubmission{}).
			Where("id = ?", submissionID).
			Update("marks", total).Error
	})
}

func (r *enrolmentRepository) ListScores(ctx context.Context, enrolmentID uint, sheetType models.SheetType) ([]models.AnswerScore, error) {
	var scores []models.AnswerScore
	err := r.db.WithContext(ctx).
		Where("enrolment_id = ? AND sheet_type = ?", enrolmentID, sheetType).
		Order("id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	return scores, nil
}

func (r *enrolmentRepository) ListAssignmentScores(ctx context.Context, submissionID uint) ([]models.AnswerScore, error) {
	var scores []models.AnswerScore
	err := r.db.WithContext(ctx).
		Where("assignment_submission_id = ?", submissionID).
		Order("id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	return scores, nil
}
