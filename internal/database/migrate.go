package database

import (
	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/models"
)

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.Enrolment{},
		&models.AssignmentSubmission{},
		&models.QuestionPaper{},
		&models.Question{},
		&models.AnswerScore{},
	)
}
