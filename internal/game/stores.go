package game

import (
	"context"

	"github.com/mroshb/trivia_arena/internal/models"
)

// RoomStore persists rooms. Status and question index only move through
// compare-and-set updates so concurrent callers cannot both win a transition.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	// TransitionStatus moves the room to status to if its current status is
	// one of from, reporting whether this call made the change.
	TransitionStatus(ctx context.Context, roomID uint, from []string, to string) (bool, error)
	// AdvanceQuestionIndex moves an in-progress room from index from to from+1.
	AdvanceQuestionIndex(ctx context.Context, roomID uint, from int) (bool, error)
}

type PlayerStore interface {
	// AddPlayer admits a player to a lobby room. It enforces the lobby
	// status, capacity and nickname uniqueness atomically, assigns the next
	// join order and makes the first player the host.
	AddPlayer(ctx context.Context, roomID uint, nickname string) (*models.Player, error)
	GetPlayer(ctx context.Context, playerID uint) (*models.Player, error)
	// ListPlayers returns the room's players ordered by join order.
	ListPlayers(ctx context.Context, roomID uint) ([]models.Player, error)
	RemovePlayer(ctx context.Context, playerID uint) error
	// PromoteNextHost flags the earliest-joined remaining player as host and
	// proxy host. It returns nil when the room is empty.
	PromoteNextHost(ctx context.Context, roomID uint) (*models.Player, error)
	SetConnected(ctx context.Context, playerID uint, connected bool) error
}

type QuestionStore interface {
	// ListQuestions returns the room's question sequence ordered by
	// question order: the category's questions for theme-based rooms,
	// otherwise the room's own.
	ListQuestions(ctx context.Context, room *models.Room) ([]models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question) error
}

type AnswerStore interface {
	// RecordAnswer inserts the submission and applies its points and streak
	// to the player in one atomic step, returning the updated player. A
	// second submission for the same player and question fails with
	// ALREADY_ANSWERED and changes nothing.
	RecordAnswer(ctx context.Context, sub *models.AnswerSubmission) (*models.Player, error)
	HasAnswered(ctx context.Context, playerID, questionID uint) (bool, error)
	// CountAnswers counts the room's submissions for a question. Theme-based
	// rooms share question rows, so the room scopes the count.
	CountAnswers(ctx context.Context, roomID, questionID uint) (int, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	FindOrCreateCategory(ctx context.Context, name, description string) (*models.Category, error)
}

// Stores bundles every storage collaborator the game services need.
type Stores struct {
	Rooms      RoomStore
	Players    PlayerStore
	Questions  QuestionStore
	Answers    AnswerStore
	Categories CategoryStore
}
