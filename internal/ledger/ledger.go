// Package ledger persists the set of envelope ids a station has already
// accepted. The ledger is the only mutable state the verifier touches and
// its insert is the protocol's single concurrency-sensitive operation.
package ledger

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"medirelay/go-station/pkg/models"
)

var keyPrefix = []byte("replay/")

// Badger is the durable ledger, one Badger directory per receiving station.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (l *Badger) Close() error {
	return l.db.Close()
}

func (l *Badger) Contains(envelopeID string) (bool, error) {
	found := false
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(envelopeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// InsertIfAbsent records envelopeID inside one transaction. When two imports
// race on the same id, Badger's conflict detection fails one of the commits;
// that loser is reported as "already present", never as an error.
func (l *Badger) InsertIfAbsent(envelopeID string, processedAt time.Time) (bool, error) {
	inserted := false
	err := l.db.Update(func(txn *badger.Txn) error {
		inserted = false
		_, err := txn.Get(recordKey(envelopeID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		var value [8]byte
		binary.BigEndian.PutUint64(value[:], uint64(processedAt.Unix()))
		if err := txn.Set(recordKey(envelopeID), value[:]); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Prune drops records processed before cutoff and reports how many went.
// Safe because the verifier already rejects anything older than the replay
// window on timestamp grounds alone.
func (l *Badger) Prune(cutoff time.Time) (int, error) {
	var stale [][]byte
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return nil
				}
				processedAt := time.Unix(int64(binary.BigEndian.Uint64(val)), 0)
				if processedAt.Before(cutoff) {
					stale = append(stale, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, key := range stale {
		err := l.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Records returns every retained record, newest first not guaranteed.
// Used by operator tooling, not by the verifier.
func (l *Badger) Records() ([]models.ReplayRecord, error) {
	var out []models.ReplayRecord
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(keyPrefix):])
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return nil
				}
				out = append(out, models.ReplayRecord{
					EnvelopeID:  id,
					ProcessedAt: time.Unix(int64(binary.BigEndian.Uint64(val)), 0).UTC(),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func recordKey(envelopeID string) []byte {
	return append(append([]byte(nil), keyPrefix...), envelopeID...)
}
