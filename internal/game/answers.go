package game

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/scoring"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

type SubmitAnswerRequest struct {
	RoomCode      string `json:"-" validate:"required,alphanum"`
	PlayerID      uint   `json:"playerId" validate:"required"`
	QuestionID    uint   `json:"questionId" validate:"required"`
	SelectedIndex *int   `json:"selectedAnswerIndex" validate:"required,gte=0"`
	// AnswerTimeMs is the client-measured time to answer. A negative value
	// makes the server use its own measurement.
	AnswerTimeMs int64 `json:"answerTimeMs"`
}

type AnswerResult struct {
	SubmissionID   uint `json:"submissionId"`
	PlayerID       uint `json:"playerId"`
	QuestionID     uint `json:"questionId"`
	IsCorrect      bool `json:"isCorrect"`
	PointsEarned   int  `json:"pointsEarned"`
	NewTotalScore  int  `json:"newTotalScore"`
	PreviousStreak int  `json:"previousStreak"`
	NewStreak      int  `json:"newStreak"`
	CurrentRank    int  `json:"currentRank"`
}

// AnswerService accepts answers for the active question of a room, scores
// them and keeps the one-answer-per-player ledger.
type AnswerService struct {
	rooms        RoomStore
	players      PlayerStore
	answers      AnswerStore
	orchestrator *Orchestrator
	publisher    Publisher
	validate     *validator.Validate
	earlyEnd     bool
	log          *zap.SugaredLogger
}

func NewAnswerService(stores Stores, orchestrator *Orchestrator, publisher Publisher, earlyEnd bool) *AnswerService {
	return &AnswerService{
		rooms:        stores.Rooms,
		players:      stores.Players,
		answers:      stores.Answers,
		orchestrator: orchestrator,
		publisher:    publisher,
		validate:     validator.New(),
		earlyEnd:     earlyEnd,
		log:          logger.Named("answers"),
	}
}

func (a *AnswerService) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*AnswerResult, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, errors.Validation("invalid answer", err)
	}

	room, err := a.rooms.GetRoomByCode(ctx, req.RoomCode)
	if err != nil {
		return nil, err
	}
	player, err := a.players.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if player.RoomID != room.ID {
		return nil, errors.InvalidState(errors.ReasonPlayerNotInRoom, "player is not in this room")
	}
	if room.Status != models.RoomStatusInProgress {
		return nil, errors.InvalidState(errors.ReasonGameNotInProgress, "game is not in progress")
	}

	var result *AnswerResult
	err = a.orchestrator.withActiveQuestion(room.RoomCode, req.QuestionID, func(aq activeQuestion) error {
		r, err := a.record(ctx, aq, player, *req.SelectedIndex, req.AnswerTimeMs)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}

	if a.earlyEnd {
		a.orchestrator.ResolveIfAllAnswered(ctx, room.RoomCode)
	}
	return result, nil
}

// record runs while the question is held active.
func (a *AnswerService) record(ctx context.Context, aq activeQuestion, player *models.Player, selected int, clientMs int64) (*AnswerResult, error) {
	q := &aq.question
	if !q.HasOption(selected) {
		return nil, errors.InvalidState(errors.ReasonInvalidOption, "selected option does not exist")
	}

	answered, err := a.answers.HasAnswered(ctx, player.ID, q.ID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, errors.AlreadyAnswered("answer already submitted for this question")
	}

	elapsed := clientMs
	if elapsed < 0 {
		elapsed = a.orchestrator.now().Sub(aq.startedAt).Milliseconds()
	}

	isCorrect := selected == q.CorrectAnswerIndex
	score := scoring.Calculate(isCorrect, elapsed, aq.timer, player.CurrentStreak)

	sub := &models.AnswerSubmission{
		PlayerID:      player.ID,
		QuestionID:    q.ID,
		RoomID:        aq.room.ID,
		SelectedIndex: selected,
		IsCorrect:     isCorrect,
		AnswerTimeMs:  elapsed,
		PointsEarned:  score.PointsEarned,
		StreakAfter:   score.NewStreak,
	}
	updated, err := a.answers.RecordAnswer(ctx, sub)
	if err != nil {
		return nil, err
	}

	roster, err := a.players.ListPlayers(ctx, aq.room.ID)
	if err != nil {
		a.log.Warnw("Failed to load roster after answer", "roomCode", aq.room.RoomCode, "error", err)
		roster = []models.Player{*updated}
	}
	board := BuildLeaderboard(roster)
	rank := RankOf(board, player.ID)
	answeredCount, err := a.answers.CountAnswers(ctx, aq.room.ID, q.ID)
	if err != nil {
		a.log.Warnw("Failed to count answers", "roomCode", aq.room.RoomCode, "error", err)
	}

	code := aq.room.RoomCode
	a.publisher.Publish(ctx, events.AnswerSubmitted{
		Header:        events.NewHeader(events.TypeAnswerSubmitted, code),
		PlayerID:      player.ID,
		Nickname:      player.Nickname,
		QuestionID:    q.ID,
		QuestionIndex: aq.index,
		AnswerTimeMs:  elapsed,
		AnsweredCount: answeredCount,
		TotalPlayers:  len(roster),
	})
	a.publisher.PublishToPlayer(ctx, player.ID, events.ScoreUpdate{
		Header:         events.NewHeader(events.TypeScoreUpdate, code),
		PlayerID:       player.ID,
		QuestionID:     q.ID,
		IsCorrect:      isCorrect,
		PointsEarned:   score.PointsEarned,
		NewTotalScore:  updated.TotalScore,
		PreviousStreak: player.CurrentStreak,
		NewStreak:      updated.CurrentStreak,
		CurrentRank:    rank,
	})
	if entry, ok := entryFor(board, player.ID); ok {
		a.publisher.Publish(ctx, events.LeaderboardUpdate{
			Header:         events.NewHeader(events.TypeLeaderboardUpdate, code),
			QuestionIndex:  aq.index,
			TotalQuestions: aq.total,
			Partial:        true,
			Leaderboard:    []models.LeaderboardEntry{entry},
		})
	}

	a.log.Infow("Answer submitted",
		"roomCode", code,
		"player", player.Nickname,
		"correct", isCorrect,
		"points", score.PointsEarned,
	)

	return &AnswerResult{
		SubmissionID:   sub.ID,
		PlayerID:       player.ID,
		QuestionID:     q.ID,
		IsCorrect:      isCorrect,
		PointsEarned:   score.PointsEarned,
		NewTotalScore:  updated.TotalScore,
		PreviousStreak: player.CurrentStreak,
		NewStreak:      updated.CurrentStreak,
		CurrentRank:    rank,
	}, nil
}
