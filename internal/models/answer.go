package models

import "time"

// AnswerSubmission is written once per (player, question) and never updated.
type AnswerSubmission struct {
	ID            uint      `gorm:"primaryKey"`
	PlayerID      uint      `gorm:"not null;uniqueIndex:idx_player_question"`
	Player        *Player   `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE"`
	QuestionID    uint      `gorm:"not null;uniqueIndex:idx_player_question;index"`
	RoomID        uint      `gorm:"not null;index"`
	SelectedIndex int       `gorm:"not null"`
	IsCorrect     bool      `gorm:"not null"`
	AnswerTimeMs  int64     `gorm:"not null"`
	PointsEarned  int       `gorm:"not null;default:0"`
	StreakAfter   int       `gorm:"not null;default:0"`
	SubmittedAt   time.Time `gorm:"autoCreateTime"`
}

func (AnswerSubmission) TableName() string {
	return "answer_submissions"
}

// LeaderboardEntry is derived from players on demand and never stored.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	PlayerID      uint   `json:"playerId"`
	Nickname      string `json:"nickname"`
	TotalScore    int    `json:"totalScore"`
	CurrentStreak int    `json:"currentStreak"`
	IsHost        bool   `json:"isHost"`
	IsConnected   bool   `json:"isConnected"`
}
