package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autoeval/autoeval-go-api/internal/models"
)

// CourseRepository defines read access to course records.
type CourseRepository interface {
	GetByName(ctx context.Context, name string) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByName(ctx context.Context, name string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&course).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}
