package game

import (
	"context"
	"testing"

	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	category, err := f.store.FindOrCreateCategory(ctx, "Science", "")
	require.NoError(t, err)
	missing := uint(4242)

	tests := []struct {
		name   string
		req    CreateRoomRequest
		code   string
		reason string
		check  func(t *testing.T, room *models.Room)
	}{
		{
			name: "defaults",
			req:  CreateRoomRequest{},
			check: func(t *testing.T, room *models.Room) {
				require.Len(t, room.RoomCode, models.RoomCodeLength)
				require.Equal(t, models.RoomStatusLobby, room.Status)
				require.Equal(t, 15, room.QuestionTimerSeconds)
				require.Equal(t, 10, room.MaxPlayers)
			},
		},
		{
			name: "custom settings",
			req:  CreateRoomRequest{TimerSeconds: 30, MaxPlayers: 4},
			check: func(t *testing.T, room *models.Room) {
				require.Equal(t, 30, room.QuestionTimerSeconds)
				require.Equal(t, 4, room.MaxPlayers)
			},
		},
		{
			name: "theme based",
			req:  CreateRoomRequest{IsThemeBased: true, CategoryID: &category.ID},
			check: func(t *testing.T, room *models.Room) {
				require.True(t, room.IsThemeBased)
				require.Equal(t, category.ID, *room.CategoryID)
			},
		},
		{
			name:   "theme based without category",
			req:    CreateRoomRequest{IsThemeBased: true},
			code:   errors.ErrCodeInvalidState,
			reason: errors.ReasonCategoryRequired,
		},
		{
			name: "theme based with unknown category",
			req:  CreateRoomRequest{IsThemeBased: true, CategoryID: &missing},
			code: errors.ErrCodeNotFound,
		},
		{
			name: "timer too short",
			req:  CreateRoomRequest{TimerSeconds: 1},
			code: errors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := f.rooms.CreateRoom(ctx, tt.req)
			if tt.code != "" {
				require.Equal(t, tt.code, errors.CodeOf(err))
				require.Equal(t, tt.reason, errors.ReasonOf(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, room)
		})
	}
}

func TestJoinRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	room, err := f.rooms.CreateRoom(ctx, CreateRoomRequest{MaxPlayers: 2})
	req.NoError(err)

	host, err := f.rooms.JoinRoom(ctx, room.RoomCode, "  <b>alice</b> ")
	req.NoError(err)
	req.Equal("alice", host.Nickname)
	req.True(host.IsHost)

	joined := f.publisher.lastOf(events.TypePlayerJoined).(events.PlayerJoined)
	req.Equal(host.ID, joined.Player.ID)
	req.Equal(1, joined.TotalPlayers)

	_, err = f.rooms.JoinRoom(ctx, room.RoomCode, "alice")
	req.Equal(errors.ReasonNicknameTaken, errors.ReasonOf(err))

	_, err = f.rooms.JoinRoom(ctx, room.RoomCode, "   ")
	req.Equal(errors.ErrCodeValidation, errors.CodeOf(err))

	bob, err := f.rooms.JoinRoom(ctx, room.RoomCode, "bob")
	req.NoError(err)
	req.False(bob.IsHost)
	req.Equal(2, f.publisher.lastOf(events.TypePlayerJoined).(events.PlayerJoined).TotalPlayers)

	_, err = f.rooms.JoinRoom(ctx, room.RoomCode, "carol")
	req.Equal(errors.ReasonRoomFull, errors.ReasonOf(err))

	_, err = f.rooms.JoinRoom(ctx, "NOPE00", "dave")
	req.Equal(errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestJoinRoom_AfterStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{0}, "alice")
	require.NoError(t, f.rooms.StartGame(ctx, room.RoomCode, players[0].ID))

	_, err := f.rooms.JoinRoom(ctx, room.RoomCode, "late")
	require.Equal(t, errors.ReasonRoomNotInLobby, errors.ReasonOf(err))
}

func TestLeaveRoom_HostHandsOver(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{0}, "alice", "bob", "carol")
	f.publisher.reset()

	// When the host leaves a three player room
	req.NoError(f.rooms.LeaveRoom(ctx, room.RoomCode, players[0].ID))

	// Then the earliest remaining player becomes proxy host
	req.Equal([]events.Type{events.TypePlayerLeft, events.TypeHostChanged}, f.publisher.types())
	left := f.publisher.lastOf(events.TypePlayerLeft).(events.PlayerLeft)
	req.Equal(players[0].ID, left.PlayerID)
	req.Equal(2, left.TotalPlayers)

	changed := f.publisher.lastOf(events.TypeHostChanged).(events.HostChanged)
	req.Equal(players[1].ID, changed.NewHostID)
	req.Equal(players[0].ID, changed.PreviousHostID)
	req.Equal("bob", changed.NewHostNickname)

	bob, err := f.store.GetPlayer(ctx, players[1].ID)
	req.NoError(err)
	req.True(bob.IsHost)
	req.True(bob.IsProxyHost)

	// and may start the game
	err = f.rooms.StartGame(ctx, room.RoomCode, players[2].ID)
	req.Equal(errors.ReasonNotHost, errors.ReasonOf(err))
	req.NoError(f.rooms.StartGame(ctx, room.RoomCode, players[1].ID))
}

func TestLeaveRoom_NonHost(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{0}, "alice", "bob")
	f.publisher.reset()

	req.NoError(f.rooms.LeaveRoom(ctx, room.RoomCode, players[1].ID))
	req.Equal([]events.Type{events.TypePlayerLeft}, f.publisher.types())

	err := f.rooms.LeaveRoom(ctx, room.RoomCode, players[1].ID)
	req.Equal(errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestLeaveRoom_LastPlayerCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{0}, "alice")
	require.NoError(t, f.rooms.StartGame(ctx, room.RoomCode, players[0].ID))

	require.NoError(t, f.rooms.LeaveRoom(ctx, room.RoomCode, players[0].ID))
	require.Equal(t, models.RoomStatusCancelled, f.roomStatus(t, room.RoomCode))
	require.False(t, f.orch.HasActiveTimer(room.RoomCode))
}

func TestLeaveRoom_ResolvesWhenRemainingAnswered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{0, 1}, "alice", "bob")
	req.NoError(f.rooms.StartGame(ctx, room.RoomCode, players[0].ID))

	_, err := f.answers.SubmitAnswer(ctx, SubmitAnswerRequest{
		RoomCode:      room.RoomCode,
		PlayerID:      players[0].ID,
		QuestionID:    f.questionIDs(t, room)[0],
		SelectedIndex: intPtr(0),
	})
	req.NoError(err)
	req.Equal(0, f.publisher.count(events.TypeQuestionEnd))

	// the only player still to answer leaves
	req.NoError(f.rooms.LeaveRoom(ctx, room.RoomCode, players[1].ID))
	req.Equal(1, f.publisher.count(events.TypeQuestionEnd))
}

func TestAddQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, nil, "alice", "bob")

	valid := AddQuestionRequest{
		Text:               "Capital of France?",
		Options:            []string{"Paris", "Rome"},
		CorrectAnswerIndex: 0,
	}

	q, err := f.rooms.AddQuestion(ctx, room.RoomCode, players[0].ID, valid)
	require.NoError(t, err)
	require.Equal(t, 0, q.QuestionOrder)
	require.Equal(t, "Paris", q.CorrectAnswerText())

	q, err = f.rooms.AddQuestion(ctx, room.RoomCode, players[0].ID, valid)
	require.NoError(t, err)
	require.Equal(t, 1, q.QuestionOrder)

	tests := []struct {
		name     string
		playerID uint
		req      AddQuestionRequest
		code     string
		reason   string
	}{
		{
			name:     "not host",
			playerID: players[1].ID,
			req:      valid,
			code:     errors.ErrCodeInvalidState,
			reason:   errors.ReasonNotHost,
		},
		{
			name:     "single option",
			playerID: players[0].ID,
			req:      AddQuestionRequest{Text: "?", Options: []string{"only"}},
			code:     errors.ErrCodeValidation,
		},
		{
			name:     "missing text",
			playerID: players[0].ID,
			req:      AddQuestionRequest{Options: []string{"a", "b"}},
			code:     errors.ErrCodeValidation,
		},
		{
			name:     "correct index out of range",
			playerID: players[0].ID,
			req:      AddQuestionRequest{Text: "?", Options: []string{"a", "b"}, CorrectAnswerIndex: 2},
			code:     errors.ErrCodeInvalidState,
			reason:   errors.ReasonInvalidOption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rooms.AddQuestion(ctx, room.RoomCode, tt.playerID, tt.req)
			require.Equal(t, tt.code, errors.CodeOf(err))
			require.Equal(t, tt.reason, errors.ReasonOf(err))
		})
	}

	require.NoError(t, f.rooms.StartGame(ctx, room.RoomCode, players[0].ID))
	_, err = f.rooms.AddQuestion(ctx, room.RoomCode, players[0].ID, valid)
	require.Equal(t, errors.ReasonRoomNotInLobby, errors.ReasonOf(err))
}

func TestThemeBasedRoom_UsesCategoryQuestions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	category, err := f.store.FindOrCreateCategory(ctx, "History", "")
	req.NoError(err)
	for i, text := range []string{"First", "Second"} {
		req.NoError(f.store.CreateQuestion(ctx, &models.Question{
			CategoryID:    &category.ID,
			QuestionText:  text,
			QuestionOrder: i,
			Options: []models.AnswerOption{
				{AnswerIndex: 0, AnswerText: "a"},
				{AnswerIndex: 1, AnswerText: "b"},
			},
		}))
	}

	room, err := f.rooms.CreateRoom(ctx, CreateRoomRequest{IsThemeBased: true, CategoryID: &category.ID})
	req.NoError(err)
	host, err := f.rooms.JoinRoom(ctx, room.RoomCode, "alice")
	req.NoError(err)

	_, err = f.rooms.AddQuestion(ctx, room.RoomCode, host.ID, AddQuestionRequest{
		Text: "Mine", Options: []string{"x", "y"},
	})
	req.Equal(errors.ReasonThemeBasedRoom, errors.ReasonOf(err))

	details, err := f.rooms.GetRoom(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal(2, details.QuestionCount)
	req.Len(details.Players, 1)

	req.NoError(f.rooms.StartGame(ctx, room.RoomCode, host.ID))
	start := f.publisher.lastOf(events.TypeQuestionStart).(events.QuestionStart)
	req.Equal("First", start.Question.Text)
	req.Equal(2, start.TotalQuestions)
}

func TestGameStateAndResults(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, []int{1}, "alice", "bob", "carol", "dave")

	state, err := f.rooms.GameState(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal(PhaseIdle, state.Phase)
	req.Equal(1, state.TotalQuestions)
	req.Nil(state.Question)

	req.NoError(f.rooms.StartGame(ctx, room.RoomCode, players[0].ID))
	qid := f.questionIDs(t, room)[0]

	state, err = f.rooms.GameState(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal(PhaseQuestionActive, state.Phase)
	req.Equal(qid, state.Question.ID)
	req.Equal(15, state.TimerSeconds)

	for i, ms := range map[int]int64{2: 1000, 3: 7000} {
		_, err := f.answers.SubmitAnswer(ctx, SubmitAnswerRequest{
			RoomCode:      room.RoomCode,
			PlayerID:      players[i].ID,
			QuestionID:    qid,
			SelectedIndex: intPtr(1),
			AnswerTimeMs:  ms,
		})
		req.NoError(err)
	}

	board, err := f.rooms.Leaderboard(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal("carol", board[0].Nickname)
	req.Equal("dave", board[1].Nickname)
	// ties keep join order
	req.Equal("alice", board[2].Nickname)
	req.Equal("bob", board[3].Nickname)

	f.scheduler.fireNext(t)
	f.scheduler.fireNext(t)

	results, err := f.rooms.Results(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal(models.RoomStatusFinished, results.Status)
	req.Len(results.Podium, 3)
	req.Len(results.AllPlayers, 4)
	req.Equal(1, results.Podium[0].Rank)

	state, err = f.rooms.GameState(ctx, room.RoomCode)
	req.NoError(err)
	req.Equal(PhaseGameFinished, state.Phase)
}

func TestSetConnected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, players := f.lobby(t, nil, "alice")

	require.NoError(t, f.rooms.SetConnected(ctx, players[0].ID, true))
	board, err := f.rooms.Leaderboard(ctx, room.RoomCode)
	require.NoError(t, err)
	require.True(t, board[0].IsConnected)

	require.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(f.rooms.SetConnected(ctx, 999, true)))
}

func TestListCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, name := range []string{"Sports", "Art"} {
		_, err := f.store.FindOrCreateCategory(ctx, name, "")
		require.NoError(t, err)
	}

	categories, err := f.rooms.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "Art", categories[0].Name)
}
