package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T, ttl time.Duration) *Journal {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	j := NewJournal(db, ttl)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testMessage(t *testing.T, room string, nickname string) distributor.Message {
	t.Helper()
	msg, err := distributor.NewMessage(events.PlayerJoined{
		Header:       events.NewHeader(events.TypePlayerJoined, room),
		Player:       events.PlayerView{ID: 1, Nickname: nickname},
		TotalPlayers: 1,
	}, 0)
	require.NoError(t, err)
	return msg
}

func Test_Journal_Replay_Keeps_Order_Per_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	j := newTestJournal(t, time.Hour)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		at = at.Add(time.Millisecond)
		return at
	}

	first := testMessage(t, "ROOM01", "alice")
	second := testMessage(t, "ROOM01", "bob")
	other := testMessage(t, "ROOM02", "carol")
	for _, msg := range []distributor.Message{first, other, second} {
		req.NoError(j.Forward(ctx, msg))
	}

	replayed, err := j.Replay("ROOM01")
	req.NoError(err)
	req.Len(replayed, 2)
	req.Equal(first.EventID, replayed[0].EventID)
	req.Equal(second.EventID, replayed[1].EventID)
	req.JSONEq(string(first.Payload), string(replayed[0].Payload))

	replayed, err = j.Replay("ROOM03")
	req.NoError(err)
	req.Empty(replayed)
}

func Test_Journal_Forward_Honours_Cancelled_Context(t *testing.T) {
	j := newTestJournal(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, j.Forward(ctx, testMessage(t, "ROOM01", "alice")), context.Canceled)
}

func Test_Journal_Subscribe_Streams_Forwarded_Messages(t *testing.T) {
	req := require.New(t)
	j := newTestJournal(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	received := map[string]bool{}
	done := make(chan error, 1)
	go func() {
		done <- j.Subscribe(ctx, func(msg distributor.Message) {
			mu.Lock()
			defer mu.Unlock()
			received[msg.EventID] = true
		})
	}()

	// Given the subscriber may not be registered yet, keep forwarding until one arrives
	req.Eventually(func() bool {
		msg, err := distributor.NewMessage(events.PlayerLeft{
			Header:   events.NewHeader(events.TypePlayerLeft, "ROOM01"),
			Nickname: "alice",
		}, 0)
		if err != nil {
			return false
		}
		if err := j.Forward(context.Background(), msg); err != nil {
			return false
		}
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return received[msg.EventID]
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func Test_Message_Decoding(t *testing.T) {
	req := require.New(t)

	_, err := messageFrom([]byte("not json"))
	req.Error(err)

	_, err = messageFrom([]byte(`{"eventType":"PLAYER_JOINED"}`))
	req.Error(err)

	msg := testMessage(t, "ROOM01", "alice")
	publishing, err := publishingFor(msg, time.Unix(100, 0))
	req.NoError(err)
	req.Equal(msg.EventID, publishing.MessageId)
	req.Equal(string(events.TypePlayerJoined), publishing.Type)
	req.Equal(contentTypeJSON, publishing.ContentType)
	req.EqualValues(2, publishing.DeliveryMode)

	decoded, err := messageFrom(publishing.Body)
	req.NoError(err)
	req.Equal(msg.EventID, decoded.EventID)
	req.Equal(msg.Channel, decoded.Channel)
}
