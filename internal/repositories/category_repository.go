package repositories

import (
	"context"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list categories")
	}
	return categories, nil
}

func (r *CategoryRepository) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	result := r.db.WithContext(ctx).First(&category, id)

	if isNotFound(result.Error) {
		return nil, errors.NotFound("category not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get category")
	}

	return &category, nil
}

// FindOrCreateCategory returns the category with this name, creating it if needed
func (r *CategoryRepository) FindOrCreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	category := models.Category{Name: name, Description: description}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&category).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create category")
	}

	if category.ID == 0 {
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load category")
		}
	}

	return &category, nil
}
