package models

import (
	"time"

	"github.com/mroshb/trivia_arena/internal/security"
	"gorm.io/gorm"
)

const RoomCodeLength = 6

type Room struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	RoomCode             string     `gorm:"type:varchar(10);uniqueIndex;not null" json:"roomCode"`
	HostPlayerID         *uint      `gorm:"index" json:"hostPlayerId,omitempty"`
	CategoryID           *uint      `gorm:"index" json:"categoryId,omitempty"`
	Category             *Category  `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	Status               string     `gorm:"type:varchar(20);not null;default:'LOBBY';index" json:"status"`
	IsThemeBased         bool       `gorm:"default:false" json:"isThemeBased"`
	QuestionTimerSeconds int        `gorm:"not null;default:15" json:"questionTimerSeconds"`
	MaxPlayers           int        `gorm:"not null;default:100" json:"maxPlayers"`
	CurrentQuestionIndex int        `gorm:"not null;default:0" json:"currentQuestionIndex"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	FinishedAt           *time.Time `json:"finishedAt,omitempty"`
}

// Room status constants
const (
	RoomStatusLobby      = "LOBBY"
	RoomStatusInProgress = "IN_PROGRESS"
	RoomStatusFinished   = "FINISHED"
	RoomStatusCancelled  = "CANCELLED"
)

var roomTransitions = map[string][]string{
	RoomStatusLobby:      {RoomStatusInProgress, RoomStatusCancelled},
	RoomStatusInProgress: {RoomStatusFinished, RoomStatusCancelled},
}

// CanTransition reports whether a room may move from one status to another.
// FINISHED and CANCELLED are terminal.
func CanTransition(from, to string) bool {
	for _, next := range roomTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor lists every status that may legally move to status to.
func SourcesFor(to string) []string {
	var from []string
	for _, status := range []string{RoomStatusLobby, RoomStatusInProgress} {
		if CanTransition(status, to) {
			from = append(from, status)
		}
	}
	return from
}

func (r *Room) IsTerminal() bool {
	return r.Status == RoomStatusFinished || r.Status == RoomStatusCancelled
}

// BeforeCreate hook to generate a room code when the caller did not pick one
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.RoomCode == "" {
		r.RoomCode = security.GenerateSecureCode(RoomCodeLength)
	}
	if r.Status == "" {
		r.Status = RoomStatusLobby
	}
	return nil
}

func (Room) TableName() string {
	return "rooms"
}
