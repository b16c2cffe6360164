package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

// Phase is where a room's game currently stands.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseQuestionActive   Phase = "QUESTION_ACTIVE"
	PhaseQuestionResolved Phase = "QUESTION_RESOLVED"
	PhaseGameFinished     Phase = "GAME_FINISHED"
	PhaseCancelled        Phase = "CANCELLED"
)

func (p Phase) terminal() bool {
	return p == PhaseGameFinished || p == PhaseCancelled
}

// Publisher is the part of the event distributor the game needs.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
	PublishToPlayer(ctx context.Context, playerID uint, e events.Event)
}

type OrchestratorConfig struct {
	InterQuestionDelay time.Duration
	// TimeUnit is the length of one timer second. Only tests change it.
	TimeUnit time.Duration
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		InterQuestionDelay: 5 * time.Second,
		TimeUnit:           time.Second,
	}
}

type OrchestratorOption func(*Orchestrator)

func WithScheduler(s Scheduler) OrchestratorOption {
	return func(o *Orchestrator) { o.scheduler = s }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// session is the live state of one running game. Every field except slot is
// guarded by mu; transitions take the write lock, answer submissions the
// read lock.
type session struct {
	mu sync.RWMutex

	room              models.Room
	questions         []models.Question
	phase             Phase
	index             int
	questionStartedAt time.Time

	slot timerSlot
}

// Orchestrator drives the question timer state machine of every running
// room. Rooms are independent: each has its own session lock and timer slot.
type Orchestrator struct {
	rooms     RoomStore
	players   PlayerStore
	questions QuestionStore
	answers   AnswerStore
	publisher Publisher
	scheduler Scheduler
	cfg       OrchestratorConfig
	now       func() time.Time
	log       *zap.SugaredLogger

	baseCtx context.Context
	stop    context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewOrchestrator(stores Stores, publisher Publisher, cfg OrchestratorConfig, opts ...OrchestratorOption) *Orchestrator {
	if cfg.TimeUnit <= 0 {
		cfg.TimeUnit = time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		rooms:     stores.Rooms,
		players:   stores.Players,
		questions: stores.Questions,
		answers:   stores.Answers,
		publisher: publisher,
		scheduler: clockScheduler{},
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Named("orchestrator"),
		baseCtx:   ctx,
		stop:      stop,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartGame moves a lobby room into play and opens its first question.
func (o *Orchestrator) StartGame(ctx context.Context, roomCode string) error {
	room, err := o.rooms.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	if room.Status != models.RoomStatusLobby {
		return errors.InvalidState(errors.ReasonGameAlreadyStarted, fmt.Sprintf("room is %s", room.Status))
	}

	questions, err := o.questions.ListQuestions(ctx, room)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return errors.NoQuestions("no questions found for this game")
	}

	ok, err := o.rooms.TransitionStatus(ctx, room.ID, []string{models.RoomStatusLobby}, models.RoomStatusInProgress)
	if err != nil {
		return err
	}
	if !ok {
		return errors.InvalidState(errors.ReasonGameAlreadyStarted, "game already started")
	}
	room.Status = models.RoomStatusInProgress
	room.CurrentQuestionIndex = 0

	s := &session{room: *room, questions: questions, phase: PhaseIdle}
	o.mu.Lock()
	o.sessions[roomCode] = s
	o.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// a cancel may land between the status change and the session lock
	current, err := o.rooms.GetRoomByCode(ctx, roomCode)
	if err != nil || s.phase.terminal() || current.Status != models.RoomStatusInProgress {
		o.abandonLocked(s)
		if err != nil {
			return err
		}
		return errors.InvalidState(errors.ReasonGameNotInProgress, "room left play before the game could start")
	}

	o.log.Infow("Game started", "roomCode", roomCode, "questions", len(questions))
	o.publisher.Publish(ctx, events.GameStarting{
		Header:         events.NewHeader(events.TypeGameStarting, roomCode),
		TotalQuestions: len(questions),
		TimerSeconds:   room.QuestionTimerSeconds,
	})
	o.startQuestionLocked(ctx, s, 0)
	return nil
}

// startQuestionLocked opens question index, or ends the game when the
// sequence is exhausted. s.mu must be held for writing.
func (o *Orchestrator) startQuestionLocked(ctx context.Context, s *session, index int) {
	code := s.room.RoomCode
	if s.phase.terminal() {
		return
	}
	expected := PhaseIdle
	if index > 0 {
		expected = PhaseQuestionResolved
	}
	if s.phase != expected || (index > 0 && s.index != index-1) {
		o.log.Debugw("Skipping stale question start", "roomCode", code, "index", index, "phase", s.phase, "current", s.index)
		return
	}

	room, err := o.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		o.log.Errorw("Failed to load room for question start", "roomCode", code, "error", err)
		return
	}
	if room.Status != models.RoomStatusInProgress {
		o.log.Warnw("Room not in progress, dropping session", "roomCode", code, "status", room.Status)
		o.abandonLocked(s)
		return
	}

	if index >= len(s.questions) {
		o.endGameLocked(ctx, s)
		return
	}
	if room.CurrentQuestionIndex != index {
		o.log.Warnw("Question index moved, skipping question start", "roomCode", code, "index", index, "stored", room.CurrentQuestionIndex)
		return
	}

	q := &s.questions[index]
	timerSeconds := q.TimerFor(&s.room)
	s.index = index
	s.phase = PhaseQuestionActive
	s.questionStartedAt = o.now()

	o.publisher.Publish(ctx, events.QuestionStart{
		Header:            events.NewHeader(events.TypeQuestionStart, code),
		QuestionID:        q.ID,
		QuestionIndex:     index,
		TotalQuestions:    len(s.questions),
		TimerSeconds:      timerSeconds,
		QuestionStartTime: s.questionStartedAt.UnixMilli(),
		Question:          events.NewQuestionView(q),
	})
	o.log.Infow("Question started", "roomCode", code, "index", index, "timerSeconds", timerSeconds)

	o.schedule(s, time.Duration(timerSeconds)*o.cfg.TimeUnit, "question_timeout", func(ctx context.Context) {
		o.endQuestionLocked(ctx, s, index)
	})
}

// endQuestionLocked resolves question index if it is still the active one.
// It reports whether this call did the resolving. s.mu must be held for writing.
func (o *Orchestrator) endQuestionLocked(ctx context.Context, s *session, index int) bool {
	code := s.room.RoomCode
	if s.phase != PhaseQuestionActive || s.index != index {
		o.log.Debugw("Question already resolved", "roomCode", code, "index", index, "phase", s.phase, "current", s.index)
		return false
	}

	room, err := o.rooms.GetRoomByCode(ctx, code)
	if err != nil {
		o.log.Errorw("Failed to load room for question end", "roomCode", code, "error", err)
		return false
	}
	if room.Status != models.RoomStatusInProgress {
		o.log.Warnw("Room not in progress, skipping question end", "roomCode", code, "status", room.Status)
		return false
	}

	s.slot.cancel()
	s.phase = PhaseQuestionResolved

	board := o.leaderboard(ctx, room.ID)
	q := &s.questions[index]
	total := len(s.questions)

	o.publisher.Publish(ctx, events.QuestionEnd{
		Header:             events.NewHeader(events.TypeQuestionEnd, code),
		QuestionID:         q.ID,
		QuestionIndex:      index,
		TotalQuestions:     total,
		CorrectAnswerIndex: q.CorrectAnswerIndex,
		CorrectAnswerText:  q.CorrectAnswerText(),
		Question:           events.NewQuestionView(q),
		Leaderboard:        Top(board, questionEndTopN),
	})
	o.publisher.Publish(ctx, events.LeaderboardUpdate{
		Header:         events.NewHeader(events.TypeLeaderboardUpdate, code),
		QuestionIndex:  index,
		TotalQuestions: total,
		Leaderboard:    board,
	})
	o.log.Infow("Question ended", "roomCode", code, "index", index)

	next := index + 1
	if next >= total {
		o.schedule(s, o.cfg.InterQuestionDelay, "game_end", func(ctx context.Context) {
			o.endGameLocked(ctx, s)
		})
		return true
	}

	advanced, err := o.rooms.AdvanceQuestionIndex(ctx, room.ID, index)
	if err != nil || !advanced {
		// never leave the room parked between questions
		o.log.Errorw("Failed to advance question index, finishing game", "roomCode", code, "index", index, "advanced", advanced, "error", err)
		o.schedule(s, o.cfg.InterQuestionDelay, "game_end", func(ctx context.Context) {
			o.endGameLocked(ctx, s)
		})
		return true
	}

	o.schedule(s, o.cfg.InterQuestionDelay, "next_question", func(ctx context.Context) {
		o.startQuestionLocked(ctx, s, next)
	})
	return true
}

// endGameLocked finishes the game and publishes the final standings.
// s.mu must be held for writing.
func (o *Orchestrator) endGameLocked(ctx context.Context, s *session) {
	code := s.room.RoomCode
	if s.phase.terminal() {
		return
	}
	s.slot.cancel()

	ok, err := o.rooms.TransitionStatus(ctx, s.room.ID, []string{models.RoomStatusInProgress}, models.RoomStatusFinished)
	if err != nil {
		o.log.Errorw("Failed to finish game", "roomCode", code, "error", err)
		return
	}
	if !ok {
		o.log.Warnw("Room left play before the game could finish", "roomCode", code)
		s.phase = PhaseCancelled
		o.removeSession(code, s)
		return
	}
	s.phase = PhaseGameFinished

	board := o.leaderboard(ctx, s.room.ID)
	podium := Top(board, podiumSize)
	o.publisher.Publish(ctx, events.GameFinished{
		Header:     events.NewHeader(events.TypeGameFinished, code),
		Podium:     podium,
		AllPlayers: board,
	})

	winner := ""
	if len(podium) > 0 {
		winner = podium[0].Nickname
	}
	o.log.Infow("Game finished", "roomCode", code, "winner", winner)
	o.removeSession(code, s)
}

// abandonLocked retires a session whose room left play behind its back.
// s.mu must be held for writing.
func (o *Orchestrator) abandonLocked(s *session) {
	s.slot.cancel()
	if !s.phase.terminal() {
		s.phase = PhaseCancelled
	}
	o.removeSession(s.room.RoomCode, s)
}

// CancelGame stops a room for good without publishing game events.
// Cancelling a room that already ended is a no-op.
func (o *Orchestrator) CancelGame(ctx context.Context, roomCode string) error {
	if s := o.session(roomCode); s != nil {
		s.mu.Lock()
		s.slot.cancel()
		if !s.phase.terminal() {
			s.phase = PhaseCancelled
		}
		s.mu.Unlock()
		o.removeSession(roomCode, s)
	}

	room, err := o.rooms.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	if room.IsTerminal() {
		return nil
	}

	ok, err := o.rooms.TransitionStatus(ctx, room.ID, models.SourcesFor(models.RoomStatusCancelled), models.RoomStatusCancelled)
	if err != nil {
		return err
	}
	if ok {
		o.log.Infow("Game cancelled", "roomCode", roomCode)
	}
	return nil
}

// SkipQuestion resolves the active question immediately.
func (o *Orchestrator) SkipQuestion(ctx context.Context, roomCode string) error {
	s := o.session(roomCode)
	if s == nil {
		return errors.InvalidState(errors.ReasonNoActiveQuestion, "no game running in this room")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseQuestionActive {
		return errors.InvalidState(errors.ReasonNoActiveQuestion, "no active question")
	}
	o.endQuestionLocked(ctx, s, s.index)
	return nil
}

// ResolveIfAllAnswered ends the active question early once every player
// still in the room has answered it.
func (o *Orchestrator) ResolveIfAllAnswered(ctx context.Context, roomCode string) bool {
	s := o.session(roomCode)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseQuestionActive {
		return false
	}

	players, err := o.players.ListPlayers(ctx, s.room.ID)
	if err != nil {
		o.log.Warnw("Failed to list players for early resolution", "roomCode", roomCode, "error", err)
		return false
	}
	answered, err := o.answers.CountAnswers(ctx, s.room.ID, s.questions[s.index].ID)
	if err != nil {
		o.log.Warnw("Failed to count answers for early resolution", "roomCode", roomCode, "error", err)
		return false
	}
	if len(players) == 0 || answered < len(players) {
		return false
	}

	o.log.Debugw("Every player answered, resolving early", "roomCode", roomCode, "index", s.index)
	return o.endQuestionLocked(ctx, s, s.index)
}

// activeQuestion is what answer handling sees of the running question.
type activeQuestion struct {
	room      models.Room
	question  models.Question
	index     int
	total     int
	timer     int
	startedAt time.Time
}

// withActiveQuestion runs fn while holding the room's read lock, so the
// question cannot be resolved until fn returns.
func (o *Orchestrator) withActiveQuestion(roomCode string, questionID uint, fn func(aq activeQuestion) error) error {
	s := o.session(roomCode)
	if s == nil {
		return errors.InvalidState(errors.ReasonNoActiveQuestion, "no game running in this room")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase != PhaseQuestionActive {
		return errors.InvalidState(errors.ReasonNoActiveQuestion, "no active question")
	}
	current := s.questions[s.index]
	if current.ID != questionID {
		for _, q := range s.questions {
			if q.ID == questionID {
				return errors.InvalidState(errors.ReasonQuestionNotActive, "question is not active")
			}
		}
		return errors.NotFound("question not found")
	}

	return fn(activeQuestion{
		room:      s.room,
		question:  current,
		index:     s.index,
		total:     len(s.questions),
		timer:     current.TimerFor(&s.room),
		startedAt: s.questionStartedAt,
	})
}

// Snapshot describes a running game for state queries.
type Snapshot struct {
	Phase             Phase
	QuestionIndex     int
	TotalQuestions    int
	TimerSeconds      int
	QuestionStartTime int64
	Question          *events.QuestionView
}

// Snapshot returns the live state of a room's game, if one is running.
func (o *Orchestrator) Snapshot(roomCode string) (Snapshot, bool) {
	s := o.session(roomCode)
	if s == nil {
		return Snapshot{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Phase:          s.phase,
		QuestionIndex:  s.index,
		TotalQuestions: len(s.questions),
	}
	if s.phase == PhaseQuestionActive {
		q := &s.questions[s.index]
		view := events.NewQuestionView(q)
		snap.Question = &view
		snap.TimerSeconds = q.TimerFor(&s.room)
		snap.QuestionStartTime = s.questionStartedAt.UnixMilli()
	}
	return snap, true
}

// HasActiveTimer reports whether the room has a pending timer.
func (o *Orchestrator) HasActiveTimer(roomCode string) bool {
	s := o.session(roomCode)
	return s != nil && s.slot.active()
}

// ActiveTimerCount counts rooms with a pending timer.
func (o *Orchestrator) ActiveTimerCount() int {
	count := 0
	for _, s := range o.snapshotSessions() {
		if s.slot.active() {
			count++
		}
	}
	return count
}

// Shutdown cancels every pending timer. Room records are left as they are.
func (o *Orchestrator) Shutdown() {
	o.stop()
	for _, s := range o.snapshotSessions() {
		s.mu.Lock()
		s.slot.cancel()
		s.mu.Unlock()
	}

	o.mu.Lock()
	o.sessions = make(map[string]*session)
	o.mu.Unlock()
	o.log.Infow("Orchestrator stopped")
}

// schedule arms the session's timer slot. The callback runs under the
// session write lock and is dropped if the slot was re-armed or cancelled
// in the meantime. Panics are contained to the callback.
func (o *Orchestrator) schedule(s *session, d time.Duration, what string, fn func(ctx context.Context)) {
	code := s.room.RoomCode
	s.slot.arm(o.scheduler, d, func(gen uint64) {
		defer func() {
			if r := recover(); r != nil {
				o.log.Errorw("Timer callback panicked", "roomCode", code, "timer", what, "panic", r)
			}
		}()

		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.slot.claim(gen) {
			o.log.Debugw("Superseded timer ignored", "roomCode", code, "timer", what)
			return
		}
		if o.baseCtx.Err() != nil {
			return
		}
		fn(o.baseCtx)
	})
}

func (o *Orchestrator) leaderboard(ctx context.Context, roomID uint) []models.LeaderboardEntry {
	players, err := o.players.ListPlayers(ctx, roomID)
	if err != nil {
		o.log.Errorw("Failed to load players for leaderboard", "roomId", roomID, "error", err)
		return []models.LeaderboardEntry{}
	}
	return BuildLeaderboard(players)
}

func (o *Orchestrator) session(roomCode string) *session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessions[roomCode]
}

func (o *Orchestrator) snapshotSessions() []*session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*session, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s)
	}
	return out
}

func (o *Orchestrator) removeSession(roomCode string, s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[roomCode] == s {
		delete(o.sessions, roomCode)
	}
}
