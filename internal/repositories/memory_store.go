package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
)

type answerKey struct {
	playerID   uint
	questionID uint
}

// MemoryStore keeps every entity in process memory behind one mutex. It
// satisfies the same contracts as the gorm repositories and backs the
// "memory" storage driver and the service tests.
type MemoryStore struct {
	mu sync.Mutex

	nextID     uint
	rooms      map[uint]*models.Room
	roomCodes  map[string]uint
	players    map[uint]*models.Player
	questions  map[uint]*models.Question
	answers    map[answerKey]*models.AnswerSubmission
	categories map[uint]*models.Category
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[uint]*models.Room),
		roomCodes:  make(map[string]uint),
		players:    make(map[uint]*models.Player),
		questions:  make(map[uint]*models.Question),
		answers:    make(map[answerKey]*models.AnswerSubmission),
		categories: make(map[uint]*models.Category),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := room.BeforeCreate(nil); err != nil {
		return err
	}
	if _, taken := s.roomCodes[room.RoomCode]; taken {
		return errors.New(errors.ErrCodeAlreadyExists, "room code already in use")
	}

	now := time.Now().UTC()
	room.ID = s.id()
	room.CreatedAt = now
	room.UpdatedAt = now

	stored := *room
	s.rooms[room.ID] = &stored
	s.roomCodes[room.RoomCode] = room.ID
	return nil
}

func (s *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.roomCodes[code]
	if !ok {
		return nil, errors.NotFound("room not found")
	}
	room := *s.rooms[id]
	return &room, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, roomID uint, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false, errors.NotFound("room not found")
	}

	matched := false
	for _, status := range from {
		if room.Status == status {
			matched = true
			break
		}
	}
	if !matched || !models.CanTransition(room.Status, to) {
		return false, nil
	}

	now := time.Now().UTC()
	room.Status = to
	room.UpdatedAt = now
	switch to {
	case models.RoomStatusInProgress:
		room.StartedAt = &now
		room.CurrentQuestionIndex = 0
	case models.RoomStatusFinished, models.RoomStatusCancelled:
		room.FinishedAt = &now
	}
	return true, nil
}

func (s *MemoryStore) AdvanceQuestionIndex(ctx context.Context, roomID uint, from int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false, errors.NotFound("room not found")
	}
	if room.Status != models.RoomStatusInProgress || room.CurrentQuestionIndex != from {
		return false, nil
	}
	room.CurrentQuestionIndex = from + 1
	room.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) AddPlayer(ctx context.Context, roomID uint, nickname string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, errors.NotFound("room not found")
	}
	if room.Status != models.RoomStatusLobby {
		return nil, errors.InvalidState(errors.ReasonRoomNotInLobby, "room is not accepting players")
	}

	count, lastOrder := 0, 0
	for _, p := range s.players {
		if p.RoomID != roomID {
			continue
		}
		count++
		if strings.EqualFold(p.Nickname, nickname) {
			return nil, errors.InvalidState(errors.ReasonNicknameTaken, "nickname already taken in this room")
		}
		if p.JoinOrder > lastOrder {
			lastOrder = p.JoinOrder
		}
	}
	if count >= room.MaxPlayers {
		return nil, errors.InvalidState(errors.ReasonRoomFull, "room is full")
	}

	now := time.Now().UTC()
	player := &models.Player{
		ID:             s.id(),
		RoomID:         roomID,
		Nickname:       nickname,
		IsHost:         count == 0,
		JoinOrder:      lastOrder + 1,
		JoinedAt:       now,
		LastActivityAt: now,
	}
	s.players[player.ID] = player
	if player.IsHost {
		id := player.ID
		room.HostPlayerID = &id
	}

	out := *player
	return &out, nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, playerID uint) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, errors.NotFound("player not found")
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) ListPlayers(ctx context.Context, roomID uint) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roster(roomID), nil
}

func (s *MemoryStore) roster(roomID uint) []models.Player {
	players := make([]models.Player, 0)
	for _, p := range s.players {
		if p.RoomID == roomID {
			players = append(players, *p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })
	return players
}

func (s *MemoryStore) RemovePlayer(ctx context.Context, playerID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return errors.NotFound("player not found")
	}
	delete(s.players, playerID)

	if room, ok := s.rooms[p.RoomID]; ok && room.HostPlayerID != nil && *room.HostPlayerID == playerID {
		room.HostPlayerID = nil
	}
	return nil
}

func (s *MemoryStore) PromoteNextHost(ctx context.Context, roomID uint) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := s.roster(roomID)
	if len(roster) == 0 {
		return nil, nil
	}

	for _, p := range roster {
		stored := s.players[p.ID]
		stored.IsHost = false
		stored.IsProxyHost = false
	}
	next := s.players[roster[0].ID]
	next.IsHost = true
	next.IsProxyHost = true

	if room, ok := s.rooms[roomID]; ok {
		id := next.ID
		room.HostPlayerID = &id
	}

	out := *next
	return &out, nil
}

func (s *MemoryStore) SetConnected(ctx context.Context, playerID uint, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return errors.NotFound("player not found")
	}
	p.IsConnected = connected
	p.LastActivityAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListQuestions(ctx context.Context, room *models.Room) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make([]models.Question, 0)
	for _, q := range s.questions {
		if room.IsThemeBased && room.CategoryID != nil {
			if q.CategoryID == nil || *q.CategoryID != *room.CategoryID {
				continue
			}
		} else if q.RoomID == nil || *q.RoomID != room.ID {
			continue
		}
		questions = append(questions, copyQuestion(q))
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].QuestionOrder != questions[j].QuestionOrder {
			return questions[i].QuestionOrder < questions[j].QuestionOrder
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (s *MemoryStore) CreateQuestion(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = s.id()
	q.CreatedAt = time.Now().UTC()
	for i := range q.Options {
		q.Options[i].ID = s.id()
		q.Options[i].QuestionID = q.ID
	}
	stored := copyQuestion(q)
	s.questions[q.ID] = &stored
	return nil
}

func copyQuestion(q *models.Question) models.Question {
	out := *q
	out.Options = append([]models.AnswerOption(nil), q.Options...)
	return out
}

func (s *MemoryStore) RecordAnswer(ctx context.Context, sub *models.AnswerSubmission) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := answerKey{playerID: sub.PlayerID, questionID: sub.QuestionID}
	if _, exists := s.answers[key]; exists {
		return nil, errors.AlreadyAnswered("answer already submitted for this question")
	}
	p, ok := s.players[sub.PlayerID]
	if !ok {
		return nil, errors.NotFound("player not found")
	}

	now := time.Now().UTC()
	sub.ID = s.id()
	sub.SubmittedAt = now
	stored := *sub
	s.answers[key] = &stored

	p.TotalScore += sub.PointsEarned
	p.CurrentStreak = sub.StreakAfter
	p.LastActivityAt = now

	out := *p
	return &out, nil
}

func (s *MemoryStore) HasAnswered(ctx context.Context, playerID, questionID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.answers[answerKey{playerID: playerID, questionID: questionID}]
	return ok, nil
}

func (s *MemoryStore) CountAnswers(ctx context.Context, roomID, questionID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, sub := range s.answers {
		if key.questionID != questionID || sub.RoomID != roomID {
			continue
		}
		// answers of players who left no longer count toward the roster
		if _, ok := s.players[sub.PlayerID]; ok {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, *c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, errors.NotFound("category not found")
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) FindOrCreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Name == name {
			out := *c
			return &out, nil
		}
	}

	c := &models.Category{ID: s.id(), Name: name, Description: description, CreatedAt: time.Now().UTC()}
	s.categories[c.ID] = c
	out := *c
	return &out, nil
}

// CountByCategory mirrors QuestionRepository.CountByCategory.
func (s *MemoryStore) CountByCategory(ctx context.Context, categoryID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, q := range s.questions {
		if q.CategoryID != nil && *q.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}
