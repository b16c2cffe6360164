package models

import "time"

type Player struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoomID         uint      `gorm:"not null;uniqueIndex:idx_room_nickname;index" json:"roomId"`
	Room           *Room     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	Nickname       string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_room_nickname" json:"nickname"`
	IsHost         bool      `gorm:"default:false" json:"isHost"`
	IsProxyHost    bool      `gorm:"default:false" json:"isProxyHost"`
	JoinOrder      int       `gorm:"not null" json:"joinOrder"`
	TotalScore     int       `gorm:"not null;default:0" json:"totalScore"`
	CurrentStreak  int       `gorm:"not null;default:0" json:"currentStreak"`
	IsConnected    bool      `gorm:"default:false" json:"isConnected"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joinedAt"`
	LastActivityAt time.Time `gorm:"autoUpdateTime" json:"lastActivityAt"`
}

// CanManageGame reports whether the player holds host privileges,
// either originally or after a promotion.
func (p *Player) CanManageGame() bool {
	return p.IsHost || p.IsProxyHost
}

func (Player) TableName() string {
	return "players"
}
