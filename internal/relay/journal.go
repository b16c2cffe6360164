package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"go.uber.org/zap"
)

const journalPrefix = "evt:"

// Journal relays messages through a local Badger store. Every forwarded
// message is written under "evt:{room}:{unix_nano}:{event_id}:{channel}:{player}"
// with a TTL, and subscribers are fed from Badger's change stream. Entries
// stay readable for replay until they expire.
type Journal struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
	log *zap.SugaredLogger
}

// OpenJournal opens (or creates) the journal at path. An empty path keeps
// the journal in memory.
func OpenJournal(path string, ttl time.Duration) (*Journal, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger journal: %w", err)
	}
	return NewJournal(db, ttl), nil
}

func NewJournal(db *badger.DB, ttl time.Duration) *Journal {
	return &Journal{db: db, ttl: ttl, now: time.Now, log: logger.Named("relay.journal")}
}

func journalKey(msg distributor.Message, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s:%s:%d",
		journalPrefix,
		msg.RoomCode,
		at.UnixNano(),
		msg.EventID,
		msg.Channel,
		msg.PlayerID,
	))
}

func (j *Journal) Forward(ctx context.Context, msg distributor.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(journalKey(msg, j.now()), body)
		if j.ttl > 0 {
			entry = entry.WithTTL(j.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (j *Journal) Subscribe(ctx context.Context, handle func(distributor.Message)) error {
	err := j.db.Subscribe(ctx, func(kvs *badger.KVList) error {
		for _, kv := range kvs.Kv {
			msg, err := messageFrom(kv.Value)
			if err != nil {
				j.log.Warnw("Dropping undecodable journal entry", "key", string(kv.Key), "error", err)
				continue
			}
			handle(msg)
		}
		return nil
	}, []pb.Match{{Prefix: []byte(journalPrefix)}})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Replay returns the journaled messages of a room in the order they were
// written, skipping the ones already expired.
func (j *Journal) Replay(roomCode string) ([]distributor.Message, error) {
	prefix := []byte(journalPrefix + roomCode + ":")
	var out []distributor.Message

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				msg, err := messageFrom(value)
				if err != nil {
					return err
				}
				out = append(out, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
