package repositories

import (
	"context"
	"time"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"gorm.io/gorm"
)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// RecordAnswer inserts the submission and applies its score in one transaction.
// The unique (player_id, question_id) index decides which of two racing
// submissions wins.
func (r *AnswerRepository) RecordAnswer(ctx context.Context, sub *models.AnswerSubmission) (*models.Player, error) {
	var player models.Player

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			if isDuplicateKey(err) {
				return errors.AlreadyAnswered("answer already submitted for this question")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record answer")
		}

		result := tx.Model(&models.Player{}).
			Where("id = ?", sub.PlayerID).
			Updates(map[string]interface{}{
				"total_score":      gorm.Expr("total_score + ?", sub.PointsEarned),
				"current_streak":   sub.StreakAfter,
				"last_activity_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update player score")
		}
		if result.RowsAffected == 0 {
			return errors.NotFound("player not found")
		}

		if err := tx.First(&player, sub.PlayerID).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to reload player")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &player, nil
}

// HasAnswered checks whether the player already answered the question
func (r *AnswerRepository) HasAnswered(ctx context.Context, playerID, questionID uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.AnswerSubmission{}).
		Where("player_id = ? AND question_id = ?", playerID, questionID).
		Count(&count)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check answer")
	}

	return count > 0, nil
}

// CountAnswers returns how many players of the room answered the question
func (r *AnswerRepository) CountAnswers(ctx context.Context, roomID, questionID uint) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.AnswerSubmission{}).
		Where("room_id = ? AND question_id = ?", roomID, questionID).
		Count(&count)

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to count answers")
	}

	return int(count), nil
}
