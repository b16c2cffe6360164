package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/repositories"
	"github.com/stretchr/testify/require"
)

// manualScheduler only fires timers when a test asks it to.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (t *manualTimer) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// fire runs the callback even if the timer was stopped, the way a runtime
// timer that already started its goroutine would.
func (t *manualTimer) fire() {
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()
	t.f()
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualScheduler) pending() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, t := range m.timers {
		if t.pending() {
			out = append(out, t)
		}
	}
	return out
}

func (m *manualScheduler) last() *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

// fireNext fires the only pending timer and fails if there is not exactly one.
func (m *manualScheduler) fireNext(t *testing.T) time.Duration {
	t.Helper()
	pending := m.pending()
	require.Len(t, pending, 1, "expected exactly one pending timer")
	pending[0].fire()
	return pending[0].d
}

type recordingPublisher struct {
	mu      sync.Mutex
	public  []events.Event
	private map[uint][]events.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{private: make(map[uint][]events.Event)}
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.public = append(p.public, e)
}

func (p *recordingPublisher) PublishToPlayer(ctx context.Context, playerID uint, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.private[playerID] = append(p.private[playerID], e)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.public))
	for _, e := range p.public {
		out = append(out, e.Meta().EventType)
	}
	return out
}

func (p *recordingPublisher) count(t events.Type) int {
	n := 0
	for _, got := range p.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) lastOf(t events.Type) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.public) - 1; i >= 0; i-- {
		if p.public[i].Meta().EventType == t {
			return p.public[i]
		}
	}
	return nil
}

func (p *recordingPublisher) all(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.public {
		if e.Meta().EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) privateFor(playerID uint) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.private[playerID]...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.public = nil
	p.private = make(map[uint][]events.Event)
}

type fixture struct {
	store     *repositories.MemoryStore
	stores    Stores
	publisher *recordingPublisher
	scheduler *manualScheduler
	clock     *fakeClock
	orch      *Orchestrator
	rooms     *RoomService
	answers   *AnswerService
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	stores := Stores{
		Rooms:      store,
		Players:    store,
		Questions:  store,
		Answers:    store,
		Categories: store,
	}
	pub := newRecordingPublisher()
	sched := &manualScheduler{}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	orch := NewOrchestrator(stores, pub, DefaultOrchestratorConfig(), WithScheduler(sched), WithClock(clock.Now))
	t.Cleanup(orch.Shutdown)

	return &fixture{
		store:     store,
		stores:    stores,
		publisher: pub,
		scheduler: sched,
		clock:     clock,
		orch:      orch,
		rooms:     NewRoomService(stores, orch, pub, RoomDefaults{TimerSeconds: 15, MaxPlayers: 10}),
		answers:   NewAnswerService(stores, orch, pub, true),
	}
}

// lobby creates a custom room with one question per entry of correct and
// joins the given players, the first becoming host.
func (f *fixture) lobby(t *testing.T, correct []int, nicknames ...string) (*models.Room, []*models.Player) {
	t.Helper()
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, CreateRoomRequest{})
	require.NoError(t, err)

	players := make([]*models.Player, 0, len(nicknames))
	for _, name := range nicknames {
		p, err := f.rooms.JoinRoom(ctx, room.RoomCode, name)
		require.NoError(t, err)
		players = append(players, p)
	}

	for i, c := range correct {
		_, err := f.rooms.AddQuestion(ctx, room.RoomCode, players[0].ID, AddQuestionRequest{
			Text:               "Question " + string(rune('A'+i)),
			Options:            []string{"zero", "one", "two", "three"},
			CorrectAnswerIndex: c,
		})
		require.NoError(t, err)
	}
	return room, players
}

func (f *fixture) questionIDs(t *testing.T, room *models.Room) []uint {
	t.Helper()
	qs, err := f.store.ListQuestions(context.Background(), room)
	require.NoError(t, err)
	ids := make([]uint, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func (f *fixture) roomStatus(t *testing.T, code string) string {
	t.Helper()
	room, err := f.store.GetRoomByCode(context.Background(), code)
	require.NoError(t, err)
	return room.Status
}

func intPtr(v int) *int { return &v }
