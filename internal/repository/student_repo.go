package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/models"
)

// StudentRepository defines read access to student records.
type StudentRepository interface {
	GetByUsername(ctx context.Context, username string) (models.Student, error)
	GetByRollNo(ctx context.Context, rollNo string) (models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates a GORM-backed repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByUsername(ctx context.Context, username string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) GetByRollNo(ctx context.Context, rollNo string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("roll_no = ?", rollNo).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}
