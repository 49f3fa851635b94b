package badger

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/storage"
)

// FragmentRepository implements storage.FragmentRepository for BadgerDB.
type FragmentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.FragmentRepository = (*FragmentRepository)(nil)

// NewFragmentRepository creates a new FragmentRepository.
func NewFragmentRepository(backend *Backend) (*FragmentRepository, error) {
	idSeq, err := backend.GetSequence(fragmentIDSeq)
	if err != nil {
		return nil, err
	}

	return &FragmentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *FragmentRepository) Close() error {
	return r.idSeq.Release()
}

// FindSimilar delegates to the backend.
func (r *FragmentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *FragmentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddFragments adds one or more fragments to storage.
func (r *FragmentRepository) AddFragments(ctx context.Context, fragments ...*core.Fragment) ([]*core.Fragment, error) {
	for _, fragment := range fragments {
		if err := core.ValidateFragment(fragment); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, fragment := range fragments {
			nextID, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			fragment.Id = nextID

			fragment.InsertedAt = storedNow()
			fragment.UpdatedAt = fragment.InsertedAt

			if err := tx.Set(makeFragmentKey(fragment.Id), storage.MarshalFragment(fragment)); err != nil {
				return err
			}

			dateKey := makeFragmentDateKey(fragment.InsertedAt, fragment.Id)
			if err := tx.Set(dateKey, storage.MarshalID(fragment.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return fragments, nil
}

// UpdateFragments updates existing fragments.
// InsertedAt is preserved from the stored copy, so the date index never moves.
func (r *FragmentRepository) UpdateFragments(ctx context.Context, fragments ...*core.Fragment) ([]*core.Fragment, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, fragment := range fragments {
			key := makeFragmentKey(fragment.Id)

			old, err := readFragment(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			fragment.InsertedAt = old.InsertedAt
			fragment.UpdatedAt = storedNow()

			if err := tx.Set(key, storage.MarshalFragment(fragment)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return fragments, nil
}

// GetFragment retrieves a single fragment by ID.
func (r *FragmentRepository) GetFragment(ctx context.Context, id core.ID) (*core.Fragment, error) {
	var result *core.Fragment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readFragment(tx, makeFragmentKey(id))
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

// GetFragmentsByDateRange retrieves fragments inserted within a time range.
func (r *FragmentRepository) GetFragmentsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Fragment, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.Fragment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialDateKey(fragmentDatePrefix, start)
		endKey := makePartialDateKey(fragmentDatePrefix, end)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fragmentDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			if bytes.Compare(iter.Item().Key(), endKey) >= 0 {
				break
			}

			id, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}

			fragment, err := readFragment(tx, makeFragmentKey(id))
			if err != nil {
				return err
			}
			if fragment != nil {
				results = append(results, fragment)
			}
		}
		return nil
	}, false)

	return results, err
}

// CountFragments returns the number of stored fragments.
func (r *FragmentRepository) CountFragments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fragmentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Helper functions

// readFragment reads a fragment from the transaction.
// Returns nil, nil when the key does not exist.
func readFragment(tx *badger.Txn, key []byte) (*core.Fragment, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var fragment *core.Fragment
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		fragment, unmarshalErr = storage.UnmarshalFragment(val)
		return unmarshalErr
	})
	return fragment, err
}

// readIndexedID reads the record ID stored as an index value.
func readIndexedID(item *badger.Item) (core.ID, error) {
	var id core.ID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}

// storedNow returns the current UTC time at the microsecond precision
// timestamps are serialized with, so returned records equal stored ones.
func storedNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// nextSequenceID returns the next ID from seq.
// BadgerDB sequences can return 0 on first call, so we skip it.
func nextSequenceID(seq *badger.Sequence) (core.ID, error) {
	next, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if next == 0 {
		if next, err = seq.Next(); err != nil {
			return 0, err
		}
	}
	return core.ID(next), nil
}
