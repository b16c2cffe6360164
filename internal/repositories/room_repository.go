package repositories

import (
	"context"
	"time"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"gorm.io/gorm"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// CreateRoom creates a new room. A code collision is reported as ALREADY_EXISTS.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Wrap(err, errors.ErrCodeAlreadyExists, "room code already in use")
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create room")
	}
	return nil
}

// GetRoomByCode retrieves a room by its join code
func (r *RoomRepository) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	result := r.db.WithContext(ctx).Where("room_code = ?", code).First(&room)

	if isNotFound(result.Error) {
		return nil, errors.NotFound("room not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get room")
	}

	return &room, nil
}

// TransitionStatus updates the status only if the current status matches one of the expected ones
func (r *RoomRepository) TransitionStatus(ctx context.Context, roomID uint, from []string, to string) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, status := range from {
		if models.CanTransition(status, to) {
			allowed = append(allowed, status)
		}
	}
	if len(allowed) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{"status": to}
	now := time.Now().UTC()
	switch to {
	case models.RoomStatusInProgress:
		updates["started_at"] = now
		updates["current_question_index"] = 0
	case models.RoomStatusFinished, models.RoomStatusCancelled:
		updates["finished_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND status IN ?", roomID, allowed).
		Updates(updates)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update room status atomically")
	}

	return result.RowsAffected > 0, nil
}

// AdvanceQuestionIndex increments the question index if it still equals from
func (r *RoomRepository) AdvanceQuestionIndex(ctx context.Context, roomID uint, from int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND status = ? AND current_question_index = ?", roomID, models.RoomStatusInProgress, from).
		Update("current_question_index", from+1)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to advance question index")
	}

	return result.RowsAffected > 0, nil
}
