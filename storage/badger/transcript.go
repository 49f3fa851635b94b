package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

// TranscriptRepository implements storage.TranscriptRepository for BadgerDB.
type TranscriptRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.TranscriptRepository = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(backend *Backend) (*TranscriptRepository, error) {
	idSeq, err := backend.GetSequence(turnIDSeq)
	if err != nil {
		return nil, err
	}

	return &TranscriptRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *TranscriptRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *TranscriptRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddTurns adds one or more turns to storage.
func (r *TranscriptRepository) AddTurns(ctx context.Context, turns ...*core.Turn) ([]*core.Turn, error) {
	for _, turn := range turns {
		if err := core.ValidateTurn(turn); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, turn := range turns {
			id, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			turn.Id = id
			turn.InsertedAt = storedNow()

			if err := tx.Set(makeTurnKey(turn.Id), storage.MarshalTurn(turn)); err != nil {
				return err
			}

			idValue := storage.MarshalID(turn.Id)
			if err := tx.Set(makeTurnDateKey(turn.Timestamp, turn.Id), idValue); err != nil {
				return err
			}
			if turn.SessionID != "" {
				if err := tx.Set(makeTurnSessionKey(turn.SessionID, turn.Timestamp, turn.Id), idValue); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return turns, nil
}

// GetTurn retrieves a single turn by ID.
func (r *TranscriptRepository) GetTurn(ctx context.Context, id core.ID) (*core.Turn, error) {
	var result *core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTurn(tx, makeTurnKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetRecentTurns retrieves the N most recent turns, ordered by timestamp descending.
func (r *TranscriptRepository) GetRecentTurns(ctx context.Context, limit int) ([]*core.Turn, error) {
	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent records first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(turnDatePrefix)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key with this prefix
		startKey := makePartialDateKey(turnDatePrefix, time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			id, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}

			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetTurnsBySession retrieves every turn of one session in timestamp order.
func (r *TranscriptRepository) GetTurnsBySession(ctx context.Context, sessionID string) ([]*core.Turn, error) {
	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTurnSessionPrefix(sessionID)

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}

			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	}, false)

	return results, err
}

// readTurn reads a turn from the transaction.
// Returns nil, nil when the key does not exist.
func readTurn(tx *badger.Txn, key []byte) (*core.Turn, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var turn *core.Turn
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		turn, unmarshalErr = storage.UnmarshalTurn(val)
		return unmarshalErr
	})
	return turn, err
}
