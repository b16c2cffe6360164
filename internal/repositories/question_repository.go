package repositories

import (
	"context"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"gorm.io/gorm"
)

type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListQuestions returns the ordered question sequence a room plays through
func (r *QuestionRepository) ListQuestions(ctx context.Context, room *models.Room) ([]models.Question, error) {
	query := r.db.WithContext(ctx).Preload("Options")
	if room.IsThemeBased && room.CategoryID != nil {
		query = query.Where("category_id = ?", *room.CategoryID)
	} else {
		query = query.Where("room_id = ?", room.ID)
	}

	var questions []models.Question
	if err := query.Order("question_order ASC").Order("id ASC").Find(&questions).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list questions")
	}

	return questions, nil
}

// CreateQuestion stores a question together with its options
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create question")
	}
	return nil
}

// CountByCategory is used by the importer to append after existing questions
func (r *QuestionRepository) CountByCategory(ctx context.Context, categoryID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count questions")
	}
	return int(count), nil
}
