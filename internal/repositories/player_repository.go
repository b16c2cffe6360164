package repositories

import (
	"context"
	"time"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// AddPlayer admits a player while holding a row lock on the room so
// capacity, nickname and host checks see a consistent roster.
func (r *PlayerRepository) AddPlayer(ctx context.Context, roomID uint, nickname string) (*models.Player, error) {
	var player *models.Player

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error
		if isNotFound(err) {
			return errors.NotFound("room not found")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock room")
		}

		if room.Status != models.RoomStatusLobby {
			return errors.InvalidState(errors.ReasonRoomNotInLobby, "room is not accepting players")
		}

		var count int64
		if err := tx.Model(&models.Player{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to count players")
		}
		if int(count) >= room.MaxPlayers {
			return errors.InvalidState(errors.ReasonRoomFull, "room is full")
		}

		var taken int64
		if err := tx.Model(&models.Player{}).
			Where("room_id = ? AND LOWER(nickname) = LOWER(?)", roomID, nickname).
			Count(&taken).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check nickname")
		}
		if taken > 0 {
			return errors.InvalidState(errors.ReasonNicknameTaken, "nickname already taken in this room")
		}

		var lastOrder int
		if err := tx.Model(&models.Player{}).
			Where("room_id = ?", roomID).
			Select("COALESCE(MAX(join_order), 0)").
			Scan(&lastOrder).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to read join order")
		}

		now := time.Now().UTC()
		player = &models.Player{
			RoomID:         roomID,
			Nickname:       nickname,
			IsHost:         count == 0,
			JoinOrder:      lastOrder + 1,
			JoinedAt:       now,
			LastActivityAt: now,
		}
		if err := tx.Create(player).Error; err != nil {
			if isDuplicateKey(err) {
				return errors.InvalidState(errors.ReasonNicknameTaken, "nickname already taken in this room")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add player")
		}

		if player.IsHost {
			if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
				Update("host_player_id", player.ID).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to set room host")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return player, nil
}

// GetPlayer retrieves a player by ID
func (r *PlayerRepository) GetPlayer(ctx context.Context, playerID uint) (*models.Player, error) {
	var player models.Player
	result := r.db.WithContext(ctx).First(&player, playerID)

	if isNotFound(result.Error) {
		return nil, errors.NotFound("player not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get player")
	}

	return &player, nil
}

// ListPlayers retrieves the room's players in join order
func (r *PlayerRepository) ListPlayers(ctx context.Context, roomID uint) ([]models.Player, error) {
	var players []models.Player
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("join_order ASC").
		Find(&players)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list players")
	}

	return players, nil
}

// RemovePlayer deletes a player and clears the room's host reference if it pointed at them
func (r *PlayerRepository) RemovePlayer(ctx context.Context, playerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Player{}, playerID)
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove player")
		}
		if result.RowsAffected == 0 {
			return errors.NotFound("player not found")
		}

		if err := tx.Model(&models.Room{}).
			Where("host_player_id = ?", playerID).
			Update("host_player_id", nil).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to clear room host")
		}
		return nil
	})
}

// PromoteNextHost makes the earliest-joined remaining player the proxy host
func (r *PlayerRepository) PromoteNextHost(ctx context.Context, roomID uint) (*models.Player, error) {
	var promoted *models.Player

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next models.Player
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ?", roomID).
			Order("join_order ASC").
			First(&next).Error
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to find next host")
		}

		if err := tx.Model(&models.Player{}).
			Where("room_id = ? AND id <> ?", roomID, next.ID).
			Updates(map[string]interface{}{"is_host": false, "is_proxy_host": false}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to clear host flags")
		}

		if err := tx.Model(&next).Updates(map[string]interface{}{
			"is_host":       true,
			"is_proxy_host": true,
		}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to promote host")
		}

		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("host_player_id", next.ID).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to set room host")
		}

		next.IsHost = true
		next.IsProxyHost = true
		promoted = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	return promoted, nil
}

// SetConnected updates the player's connection flag
func (r *PlayerRepository) SetConnected(ctx context.Context, playerID uint, connected bool) error {
	result := r.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"is_connected":     connected,
			"last_activity_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update connection state")
	}
	if result.RowsAffected == 0 {
		return errors.NotFound("player not found")
	}

	return nil
}
