package events

import (
	"encoding/json"
	"testing"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDecode_RestoresConcreteType(t *testing.T) {
	req := require.New(t)

	// Given a question end event with a leaderboard excerpt
	original := QuestionEnd{
		Header:             NewHeader(TypeQuestionEnd, "ABC123"),
		QuestionID:         7,
		QuestionIndex:      1,
		TotalQuestions:     3,
		CorrectAnswerIndex: 2,
		CorrectAnswerText:  "Canberra",
		Leaderboard: []models.LeaderboardEntry{
			{Rank: 1, PlayerID: 4, Nickname: "alice", TotalScore: 916},
		},
	}

	// When it is encoded and decoded
	data, err := Encode(original)
	req.NoError(err)
	decoded, err := Decode(data)
	req.NoError(err)

	// Then the same typed event comes back
	got, ok := decoded.(*QuestionEnd)
	req.True(ok)
	req.Equal(original, *got)
	req.Equal(ChannelGame, decoded.Channel())
}

func TestEncode_HeaderFieldsOnWire(t *testing.T) {
	req := require.New(t)
	evt := ScoreUpdate{Header: NewHeader(TypeScoreUpdate, "ROOM01"), PlayerID: 3, PointsEarned: 550}

	data, err := Encode(evt)
	req.NoError(err)

	var wire map[string]any
	req.NoError(json.Unmarshal(data, &wire))
	req.Equal("SCORE_UPDATE", wire["eventType"])
	req.Equal("ROOM01", wire["roomCode"])
	req.NotEmpty(wire["eventId"])
	req.NotZero(wire["serverTimestamp"])
	req.EqualValues(SchemaVersion, wire["version"])
}

func TestQuestionStart_NeverCarriesCorrectAnswer(t *testing.T) {
	req := require.New(t)
	q := &models.Question{
		ID:                 9,
		QuestionText:       "Capital of Australia?",
		CorrectAnswerIndex: 1,
		Options: []models.AnswerOption{
			{AnswerIndex: 1, AnswerText: "Canberra"},
			{AnswerIndex: 0, AnswerText: "Sydney"},
		},
	}

	data, err := Encode(QuestionStart{Header: NewHeader(TypeQuestionStart, "R"), Question: NewQuestionView(q)})
	req.NoError(err)

	req.NotContains(string(data), "correctAnswer")
	req.Contains(string(data), `"options":[{"index":0,"text":"Sydney"},{"index":1,"text":"Canberra"}]`)
}

func TestAnswerSubmitted_OmitsSelection(t *testing.T) {
	data, err := Encode(AnswerSubmitted{Header: NewHeader(TypeAnswerSubmitted, "R"), PlayerID: 1})
	require.NoError(t, err)
	require.NotContains(t, string(data), "selected")
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"unknown type", `{"eventType":"SOMETHING_ELSE"}`},
		{"bad payload", `{"eventType":"PLAYER_LEFT","playerId":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestEveryTypeHasAChannel(t *testing.T) {
	cases := map[Channel][]Event{
		ChannelPlayers:     {PlayerJoined{}, PlayerLeft{}, HostChanged{}, AnswerSubmitted{}},
		ChannelGame:        {GameStarting{}, QuestionStart{}, QuestionEnd{}, GameFinished{}},
		ChannelPrivate:     {ScoreUpdate{}},
		ChannelLeaderboard: {LeaderboardUpdate{}},
	}
	for channel, evts := range cases {
		for _, e := range evts {
			require.Equal(t, channel, e.Channel())
		}
	}
}
