package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/models"
)

// QuestionPaperRepository defines access to answer keys.
type QuestionPaperRepository interface {
	Get(ctx context.Context, courseID uint, sheetType models.SheetType, assignmentNumber *int) (models.QuestionPaper, error)
	Exists(ctx context.Context, courseID uint, sheetType models.SheetType, assignmentNumber *int) (bool, error)
	Create(ctx context.Context, paper *models.QuestionPaper) error
}

type questionPaperRepository struct {
	db *gorm.DB
}

// NewQuestionPaperRepository instantiates a GORM-backed repository.
func NewQuestionPaperRepository(db *gorm.DB) QuestionPaperRepository {
	return &questionPaperRepository{db: db}
}

func scopePaper(db *gorm.DB, courseID uint, sheetType models.SheetType, assignmentNumber *int) *gorm.DB {
	query := db.Where("course_id = ? AND sheet_type = ?", courseID, sheetType)
	if assignmentNumber != nil {
		return query.Where("assignment_number = ?", *assignmentNumber)
	}

	return query.Where("assignment_number IS NULL")
}

func (r *questionPaperRepository) Get(ctx context.Context, courseID uint, sheetType models.SheetType, assignmentNumber *int) (models.QuestionPaper, error) {
	var paper models.QuestionPaper
	err := scopePaper(r.db.WithContext(ctx), courseID, sheetType, assignmentNumber).
		Preload("Questions").
		First(&paper).Error
	if err != nil {
		return models.QuestionPaper{}, err
	}

	return paper, nil
}

func (r *questionPaperRepository) Exists(ctx context.Context, courseID uint, sheetType models.SheetType, assignmentNumber *int) (bool, error) {
	var count int64
	err := scopePaper(r.db.WithContext(ctx).Model(&models.QuestionPaper{}), courseID, sheetType, assignmentNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *questionPaperRepository) Create(ctx context.Context, paper *models.QuestionPaper) error {
	return r.db.WithContext(ctx).Create(paper).Error
}
