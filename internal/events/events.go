// Package events defines every message the game pushes to clients. Each
// event type is its own struct so producers and consumers share one contract;
// JSON is only produced at the edge by Encode.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/trivia_arena/internal/models"
)

const SchemaVersion = 1

type Type string

const (
	TypePlayerJoined      Type = "PLAYER_JOINED"
	TypePlayerLeft        Type = "PLAYER_LEFT"
	TypeHostChanged       Type = "HOST_CHANGED"
	TypeAnswerSubmitted   Type = "ANSWER_SUBMITTED"
	TypeGameStarting      Type = "GAME_STARTING"
	TypeQuestionStart     Type = "QUESTION_START"
	TypeQuestionEnd       Type = "QUESTION_END"
	TypeGameFinished      Type = "GAME_FINISHED"
	TypeScoreUpdate       Type = "SCORE_UPDATE"
	TypeLeaderboardUpdate Type = "LEADERBOARD_UPDATE"
)

// Channel is the logical stream a room subscriber listens on.
type Channel string

const (
	ChannelGame        Channel = "game"
	ChannelPlayers     Channel = "players"
	ChannelLeaderboard Channel = "leaderboard"
	ChannelPrivate     Channel = "private"
)

// Event is implemented by every concrete event struct.
type Event interface {
	Meta() Header
	Channel() Channel
}

// Header carries the fields every event has on the wire.
type Header struct {
	EventID         string `json:"eventId"`
	EventType       Type   `json:"eventType"`
	RoomCode        string `json:"roomCode"`
	ServerTimestamp int64  `json:"serverTimestamp"`
	Version         int    `json:"version"`
}

func (h Header) Meta() Header { return h }

// NewHeader stamps a fresh event identifier and the current server time.
func NewHeader(t Type, roomCode string) Header {
	return Header{
		EventID:         uuid.NewString(),
		EventType:       t,
		RoomCode:        roomCode,
		ServerTimestamp: time.Now().UnixMilli(),
		Version:         SchemaVersion,
	}
}

// PlayerView is the public projection of a player.
type PlayerView struct {
	ID          uint   `json:"id"`
	Nickname    string `json:"nickname"`
	IsHost      bool   `json:"isHost"`
	IsProxyHost bool   `json:"isProxyHost"`
	JoinOrder   int    `json:"joinOrder"`
	TotalScore  int    `json:"totalScore"`
}

func NewPlayerView(p *models.Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Nickname:    p.Nickname,
		IsHost:      p.IsHost,
		IsProxyHost: p.IsProxyHost,
		JoinOrder:   p.JoinOrder,
		TotalScore:  p.TotalScore,
	}
}

// QuestionView is a question as players see it, without the correct answer.
type QuestionView struct {
	ID      uint                  `json:"id"`
	Text    string                `json:"text"`
	Options []models.AnswerOption `json:"options"`
}

func NewQuestionView(q *models.Question) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.QuestionText,
		Options: q.SortedOptions(),
	}
}

type PlayerJoined struct {
	Header
	Player       PlayerView `json:"player"`
	TotalPlayers int        `json:"totalPlayers"`
}

func (PlayerJoined) Channel() Channel { return ChannelPlayers }

type PlayerLeft struct {
	Header
	PlayerID     uint   `json:"playerId"`
	Nickname     string `json:"nickname"`
	TotalPlayers int    `json:"totalPlayers"`
}

func (PlayerLeft) Channel() Channel { return ChannelPlayers }

type HostChanged struct {
	Header
	PreviousHostID  uint   `json:"previousHostId"`
	NewHostID       uint   `json:"newHostId"`
	NewHostNickname string `json:"newHostNickname"`
}

func (HostChanged) Channel() Channel { return ChannelPlayers }

// AnswerSubmitted tells the room that a player answered, without the chosen option.
type AnswerSubmitted struct {
	Header
	PlayerID      uint   `json:"playerId"`
	Nickname      string `json:"nickname"`
	QuestionID    uint   `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	AnswerTimeMs  int64  `json:"answerTimeMs"`
	AnsweredCount int    `json:"answeredCount"`
	TotalPlayers  int    `json:"totalPlayers"`
}

func (AnswerSubmitted) Channel() Channel { return ChannelPlayers }

type GameStarting struct {
	Header
	TotalQuestions int `json:"totalQuestions"`
	TimerSeconds   int `json:"timerSeconds"`
}

func (GameStarting) Channel() Channel { return ChannelGame }

type QuestionStart struct {
	Header
	QuestionID        uint         `json:"questionId"`
	QuestionIndex     int          `json:"questionIndex"`
	TotalQuestions    int          `json:"totalQuestions"`
	TimerSeconds      int          `json:"timerSeconds"`
	QuestionStartTime int64        `json:"questionStartTime"`
	Question          QuestionView `json:"question"`
}

func (QuestionStart) Channel() Channel { return ChannelGame }

type QuestionEnd struct {
	Header
	QuestionID         uint                      `json:"questionId"`
	QuestionIndex      int                       `json:"questionIndex"`
	TotalQuestions     int                       `json:"totalQuestions"`
	CorrectAnswerIndex int                       `json:"correctAnswerIndex"`
	CorrectAnswerText  string                    `json:"correctAnswerText"`
	Question           QuestionView              `json:"question"`
	Leaderboard        []models.LeaderboardEntry `json:"leaderboard"`
}

func (QuestionEnd) Channel() Channel { return ChannelGame }

type GameFinished struct {
	Header
	Podium     []models.LeaderboardEntry `json:"podium"`
	AllPlayers []models.LeaderboardEntry `json:"allPlayers"`
}

func (GameFinished) Channel() Channel { return ChannelGame }

// ScoreUpdate is sent privately to the player who answered.
type ScoreUpdate struct {
	Header
	PlayerID       uint `json:"playerId"`
	QuestionID     uint `json:"questionId"`
	IsCorrect      bool `json:"isCorrect"`
	PointsEarned   int  `json:"pointsEarned"`
	NewTotalScore  int  `json:"newTotalScore"`
	PreviousStreak int  `json:"previousStreak"`
	NewStreak      int  `json:"newStreak"`
	CurrentRank    int  `json:"currentRank"`
}

func (ScoreUpdate) Channel() Channel { return ChannelPrivate }

// LeaderboardUpdate carries either the full standings (after a question) or,
// with Partial set, just the entries that changed.
type LeaderboardUpdate struct {
	Header
	QuestionIndex  int                       `json:"questionIndex"`
	TotalQuestions int                       `json:"totalQuestions"`
	Partial        bool                      `json:"partial"`
	Leaderboard    []models.LeaderboardEntry `json:"leaderboard"`
}

func (LeaderboardUpdate) Channel() Channel { return ChannelLeaderboard }
