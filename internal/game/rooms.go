package game

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/security"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const roomCodeAttempts = 5

type RoomDefaults struct {
	TimerSeconds int
	MaxPlayers   int
}

type CreateRoomRequest struct {
	CategoryID   *uint `json:"categoryId"`
	IsThemeBased bool  `json:"isThemeBased"`
	TimerSeconds int   `json:"questionTimerSeconds" validate:"omitempty,min=5,max=300"`
	MaxPlayers   int   `json:"maxPlayers" validate:"omitempty,min=1,max=1000"`
}

type AddQuestionRequest struct {
	Text               string   `json:"questionText" validate:"required"`
	Options            []string `json:"options" validate:"min=2,max=8,dive,required"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex" validate:"gte=0"`
	TimerSeconds       *int     `json:"timerSeconds" validate:"omitempty,min=5,max=300"`
}

// RoomDetails is a room together with its public roster.
type RoomDetails struct {
	Room          *models.Room        `json:"room"`
	Players       []events.PlayerView `json:"players"`
	QuestionCount int                 `json:"questionCount"`
}

// GameState is the server-authoritative view of a room a client can use to
// resynchronize after reconnecting.
type GameState struct {
	RoomCode             string                    `json:"roomCode"`
	Status               string                    `json:"status"`
	Phase                Phase                     `json:"phase"`
	CurrentQuestionIndex int                       `json:"currentQuestionIndex"`
	TotalQuestions       int                       `json:"totalQuestions"`
	TimerSeconds         int                       `json:"timerSeconds,omitempty"`
	QuestionStartTime    int64                     `json:"questionStartTime,omitempty"`
	Question             *events.QuestionView      `json:"question,omitempty"`
	Leaderboard          []models.LeaderboardEntry `json:"leaderboard"`
}

type Results struct {
	RoomCode   string                    `json:"roomCode"`
	Status     string                    `json:"status"`
	Podium     []models.LeaderboardEntry `json:"podium"`
	AllPlayers []models.LeaderboardEntry `json:"allPlayers"`
}

// RoomService manages the room lifecycle around a game: creation, the
// roster, host succession and host-only actions.
type RoomService struct {
	stores       Stores
	orchestrator *Orchestrator
	publisher    Publisher
	defaults     RoomDefaults
	validate     *validator.Validate
	log          *zap.SugaredLogger
}

func NewRoomService(stores Stores, orchestrator *Orchestrator, publisher Publisher, defaults RoomDefaults) *RoomService {
	return &RoomService{
		stores:       stores,
		orchestrator: orchestrator,
		publisher:    publisher,
		defaults:     defaults,
		validate:     validator.New(),
		log:          logger.Named("rooms"),
	}
}

// CreateRoom opens a new lobby under a fresh six character code.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Validation("invalid room settings", err)
	}

	if req.IsThemeBased {
		if req.CategoryID == nil {
			return nil, errors.InvalidState(errors.ReasonCategoryRequired, "theme-based rooms need a category")
		}
		if _, err := s.stores.Categories.GetCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	timer := req.TimerSeconds
	if timer == 0 {
		timer = s.defaults.TimerSeconds
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.defaults.MaxPlayers
	}

	var lastErr error
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room := &models.Room{
			RoomCode:             security.GenerateSecureCode(models.RoomCodeLength),
			Status:               models.RoomStatusLobby,
			CategoryID:           req.CategoryID,
			IsThemeBased:         req.IsThemeBased,
			QuestionTimerSeconds: timer,
			MaxPlayers:           maxPlayers,
		}
		err := s.stores.Rooms.CreateRoom(ctx, room)
		if err == nil {
			s.log.Infow("Room created", "roomCode", room.RoomCode, "themeBased", room.IsThemeBased)
			return room, nil
		}
		if !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.ErrCodeInternalError, "could not allocate a unique room code")
}

func (s *RoomService) GetRoom(ctx context.Context, code string) (*RoomDetails, error) {
	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.stores.Players.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.stores.Questions.ListQuestions(ctx, room)
	if err != nil {
		return nil, err
	}

	return &RoomDetails{
		Room: room,
		Players: lo.Map(players, func(p models.Player, _ int) events.PlayerView {
			return events.NewPlayerView(&p)
		}),
		QuestionCount: len(questions),
	}, nil
}

// JoinRoom adds a player to a lobby. The first player becomes host.
func (s *RoomService) JoinRoom(ctx context.Context, code, nickname string) (*models.Player, error) {
	clean := security.SanitizeNickname(nickname)
	if clean == "" {
		return nil, errors.Validation("nickname is required", nil)
	}

	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusLobby {
		return nil, errors.InvalidState(errors.ReasonRoomNotInLobby, "room is not accepting players")
	}

	player, err := s.stores.Players.AddPlayer(ctx, room.ID, clean)
	if err != nil {
		return nil, err
	}

	total := s.countPlayers(ctx, room.ID)
	s.publisher.Publish(ctx, events.PlayerJoined{
		Header:       events.NewHeader(events.TypePlayerJoined, code),
		Player:       events.NewPlayerView(player),
		TotalPlayers: total,
	})
	s.log.Infow("Player joined", "roomCode", code, "player", player.Nickname, "host", player.IsHost)
	return player, nil
}

// LeaveRoom removes a player. A departing host hands over to the
// earliest-joined remaining player; an emptied room is cancelled.
func (s *RoomService) LeaveRoom(ctx context.Context, code string, playerID uint) error {
	room, player, err := s.roomAndPlayer(ctx, code, playerID)
	if err != nil {
		return err
	}

	if err := s.stores.Players.RemovePlayer(ctx, player.ID); err != nil {
		return err
	}

	remaining, err := s.stores.Players.ListPlayers(ctx, room.ID)
	if err != nil {
		return err
	}
	s.publisher.Publish(ctx, events.PlayerLeft{
		Header:       events.NewHeader(events.TypePlayerLeft, code),
		PlayerID:     player.ID,
		Nickname:     player.Nickname,
		TotalPlayers: len(remaining),
	})
	s.log.Infow("Player left", "roomCode", code, "player", player.Nickname, "remaining", len(remaining))

	if len(remaining) == 0 {
		return s.orchestrator.CancelGame(ctx, code)
	}

	if player.IsHost {
		promoted, err := s.stores.Players.PromoteNextHost(ctx, room.ID)
		if err != nil {
			return err
		}
		if promoted != nil {
			s.publisher.Publish(ctx, events.HostChanged{
				Header:          events.NewHeader(events.TypeHostChanged, code),
				PreviousHostID:  player.ID,
				NewHostID:       promoted.ID,
				NewHostNickname: promoted.Nickname,
			})
			s.log.Infow("Host changed", "roomCode", code, "newHost", promoted.Nickname)
		}
	}

	if room.Status == models.RoomStatusInProgress {
		s.orchestrator.ResolveIfAllAnswered(ctx, code)
	}
	return nil
}

// StartGame lets the host or proxy host begin the game.
func (s *RoomService) StartGame(ctx context.Context, code string, playerID uint) error {
	if _, _, err := s.hostOf(ctx, code, playerID); err != nil {
		return err
	}
	return s.orchestrator.StartGame(ctx, code)
}

// SkipQuestion lets the host end the active question before its timer.
func (s *RoomService) SkipQuestion(ctx context.Context, code string, playerID uint) error {
	if _, _, err := s.hostOf(ctx, code, playerID); err != nil {
		return err
	}
	return s.orchestrator.SkipQuestion(ctx, code)
}

// CancelGame lets the host abandon the room.
func (s *RoomService) CancelGame(ctx context.Context, code string, playerID uint) error {
	if _, _, err := s.hostOf(ctx, code, playerID); err != nil {
		return err
	}
	return s.orchestrator.CancelGame(ctx, code)
}

// AddQuestion appends a custom question to a room that owns its questions.
func (s *RoomService) AddQuestion(ctx context.Context, code string, playerID uint, req AddQuestionRequest) (*models.Question, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Validation("invalid question", err)
	}
	if req.CorrectAnswerIndex >= len(req.Options) {
		return nil, errors.InvalidState(errors.ReasonInvalidOption, "correct answer index out of range")
	}

	room, _, err := s.hostOf(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusLobby {
		return nil, errors.InvalidState(errors.ReasonRoomNotInLobby, "questions can only be added before the game starts")
	}
	if room.IsThemeBased {
		return nil, errors.InvalidState(errors.ReasonThemeBasedRoom, "theme-based rooms draw questions from their category")
	}

	existing, err := s.stores.Questions.ListQuestions(ctx, room)
	if err != nil {
		return nil, err
	}

	roomID := room.ID
	q := &models.Question{
		RoomID:             &roomID,
		QuestionText:       security.SanitizeQuestionText(req.Text),
		QuestionOrder:      len(existing),
		CorrectAnswerIndex: req.CorrectAnswerIndex,
		TimerSeconds:       req.TimerSeconds,
		Options: lo.Map(req.Options, func(text string, i int) models.AnswerOption {
			return models.AnswerOption{AnswerIndex: i, AnswerText: security.SanitizeQuestionText(text)}
		}),
	}
	if err := s.stores.Questions.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// SetConnected records whether a player currently has a live connection.
func (s *RoomService) SetConnected(ctx context.Context, playerID uint, connected bool) error {
	return s.stores.Players.SetConnected(ctx, playerID, connected)
}

func (s *RoomService) Leaderboard(ctx context.Context, code string) ([]models.LeaderboardEntry, error) {
	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.stores.Players.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return BuildLeaderboard(players), nil
}

func (s *RoomService) Results(ctx context.Context, code string) (*Results, error) {
	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.stores.Players.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	board := BuildLeaderboard(players)
	return &Results{
		RoomCode:   room.RoomCode,
		Status:     room.Status,
		Podium:     Top(board, podiumSize),
		AllPlayers: board,
	}, nil
}

func (s *RoomService) GameState(ctx context.Context, code string) (*GameState, error) {
	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	board, err := s.Leaderboard(ctx, code)
	if err != nil {
		return nil, err
	}

	state := &GameState{
		RoomCode:             room.RoomCode,
		Status:               room.Status,
		Phase:                PhaseIdle,
		CurrentQuestionIndex: room.CurrentQuestionIndex,
		Leaderboard:          board,
	}
	switch room.Status {
	case models.RoomStatusFinished:
		state.Phase = PhaseGameFinished
	case models.RoomStatusCancelled:
		state.Phase = PhaseCancelled
	}

	if snap, ok := s.orchestrator.Snapshot(code); ok {
		state.Phase = snap.Phase
		state.CurrentQuestionIndex = snap.QuestionIndex
		state.TotalQuestions = snap.TotalQuestions
		state.TimerSeconds = snap.TimerSeconds
		state.QuestionStartTime = snap.QuestionStartTime
		state.Question = snap.Question
		return state, nil
	}

	questions, err := s.stores.Questions.ListQuestions(ctx, room)
	if err != nil {
		return nil, err
	}
	state.TotalQuestions = len(questions)
	return state, nil
}

func (s *RoomService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.stores.Categories.ListCategories(ctx)
}

func (s *RoomService) roomAndPlayer(ctx context.Context, code string, playerID uint) (*models.Room, *models.Player, error) {
	room, err := s.stores.Rooms.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	player, err := s.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	if player.RoomID != room.ID {
		return nil, nil, errors.InvalidState(errors.ReasonPlayerNotInRoom, "player is not in this room")
	}
	return room, player, nil
}

func (s *RoomService) hostOf(ctx context.Context, code string, playerID uint) (*models.Room, *models.Player, error) {
	room, player, err := s.roomAndPlayer(ctx, code, playerID)
	if err != nil {
		return nil, nil, err
	}
	if !player.CanManageGame() {
		return nil, nil, errors.InvalidState(errors.ReasonNotHost, "only the host can do this")
	}
	return room, player, nil
}

func (s *RoomService) countPlayers(ctx context.Context, roomID uint) int {
	players, err := s.stores.Players.ListPlayers(ctx, roomID)
	if err != nil {
		s.log.Warnw("Failed to count players", "roomId", roomID, "error", err)
		return 0
	}
	return len(players)
}
