package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/trivia_arena/internal/game"
	"github.com/mroshb/trivia_arena/internal/middleware"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/security"
	"github.com/mroshb/trivia_arena/pkg/errors"
)

// Rooms is the room service surface the HTTP API drives.
type Rooms interface {
	CreateRoom(ctx context.Context, req game.CreateRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, code string) (*game.RoomDetails, error)
	JoinRoom(ctx context.Context, code, nickname string) (*models.Player, error)
	LeaveRoom(ctx context.Context, code string, playerID uint) error
	StartGame(ctx context.Context, code string, playerID uint) error
	SkipQuestion(ctx context.Context, code string, playerID uint) error
	CancelGame(ctx context.Context, code string, playerID uint) error
	AddQuestion(ctx context.Context, code string, playerID uint, req game.AddQuestionRequest) (*models.Question, error)
	Leaderboard(ctx context.Context, code string) ([]models.LeaderboardEntry, error)
	Results(ctx context.Context, code string) (*game.Results, error)
	GameState(ctx context.Context, code string) (*game.GameState, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type Answers interface {
	SubmitAnswer(ctx context.Context, req game.SubmitAnswerRequest) (*game.AnswerResult, error)
}

type RoomHandler struct {
	rooms   Rooms
	answers Answers
	limiter *middleware.RateLimiter
	secret  string
	ttl     time.Duration
}

func NewRoomHandler(rooms Rooms, answers Answers, limiter *middleware.RateLimiter, ticketSecret string, ticketTTL time.Duration) *RoomHandler {
	return &RoomHandler{rooms: rooms, answers: answers, limiter: limiter, secret: ticketSecret, ttl: ticketTTL}
}

type JoinRoomRequest struct {
	Nickname string `json:"nickname" binding:"required,max=100" example:"alice"`
}

// JoinRoomResponse carries the ticket the player presents when opening
// their websocket.
type JoinRoomResponse struct {
	Player   *models.Player `json:"player"`
	RoomCode string         `json:"roomCode"`
	Ticket   string         `json:"ticket"`
}

type PlayerActionRequest struct {
	PlayerID uint `json:"playerId" binding:"required" example:"1"`
}

type AddQuestionBody struct {
	PlayerID uint `json:"playerId" binding:"required"`
	game.AddQuestionRequest
}

type SubmitAnswerBody struct {
	PlayerID            uint   `json:"playerId" binding:"required"`
	QuestionID          uint   `json:"questionId" binding:"required"`
	SelectedAnswerIndex *int   `json:"selectedAnswerIndex" binding:"required"`
	AnswerTimeMs        *int64 `json:"answerTimeMs"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req game.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		badRequest(c, err)
		return
	}
	room, err := h.rooms.CreateRoom(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	details, err := h.rooms.GetRoom(c.Request.Context(), roomCode(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	code := roomCode(c)
	player, err := h.rooms.JoinRoom(c.Request.Context(), code, req.Nickname)
	if err != nil {
		respondError(c, err)
		return
	}

	ticket, err := security.GenerateJoinTicket(code, player.ID, h.secret, h.ttl)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeInternalError, "failed to issue ticket"))
		return
	}
	c.JSON(http.StatusCreated, JoinRoomResponse{Player: player, RoomCode: code, Ticket: ticket})
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	h.playerAction(c, h.rooms.LeaveRoom, "left room")
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	h.playerAction(c, h.rooms.StartGame, "game started")
}

func (h *RoomHandler) SkipQuestion(c *gin.Context) {
	h.playerAction(c, h.rooms.SkipQuestion, "question skipped")
}

func (h *RoomHandler) CancelGame(c *gin.Context) {
	h.playerAction(c, h.rooms.CancelGame, "game cancelled")
}

func (h *RoomHandler) playerAction(c *gin.Context, action func(ctx context.Context, code string, playerID uint) error, done string) {
	var req PlayerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := action(c.Request.Context(), roomCode(c), req.PlayerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: done})
}

func (h *RoomHandler) AddQuestion(c *gin.Context) {
	var req AddQuestionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.rooms.AddQuestion(c.Request.Context(), roomCode(c), req.PlayerID, req.AddQuestionRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// SubmitAnswer scores an answer. Omitting answerTimeMs lets the server
// measure the response time itself.
func (h *RoomHandler) SubmitAnswer(c *gin.Context) {
	var body SubmitAnswerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if h.limiter != nil {
		key := middleware.PlayerKey{IP: c.ClientIP(), PlayerID: body.PlayerID}
		if !h.limiter.CheckPlayerLimit(key) {
			respondError(c, errors.New(errors.ErrCodeRateLimitExceeded, "too many answer attempts"))
			return
		}
		// tighter of the IP and player budgets
		remaining := h.limiter.GetPlayerRemaining(key)
		if ip := h.limiter.GetIPRemaining(key.IP); ip < remaining {
			remaining = ip
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}

	elapsed := int64(-1)
	if body.AnswerTimeMs != nil {
		elapsed = *body.AnswerTimeMs
	}
	result, err := h.answers.SubmitAnswer(c.Request.Context(), game.SubmitAnswerRequest{
		RoomCode:      roomCode(c),
		PlayerID:      body.PlayerID,
		QuestionID:    body.QuestionID,
		SelectedIndex: body.SelectedAnswerIndex,
		AnswerTimeMs:  elapsed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RoomHandler) GameState(c *gin.Context) {
	state, err := h.rooms.GameState(c.Request.Context(), roomCode(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) Leaderboard(c *gin.Context) {
	board, err := h.rooms.Leaderboard(c.Request.Context(), roomCode(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomCode": roomCode(c), "leaderboard": board})
}

func (h *RoomHandler) Results(c *gin.Context) {
	results, err := h.rooms.Results(c.Request.Context(), roomCode(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *RoomHandler) ListCategories(c *gin.Context) {
	categories, err := h.rooms.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}
