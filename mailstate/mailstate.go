// Package mailstate is a best-effort, badger-backed snapshot of the address
// directory (directory.Directory), so a relay restart can answer
// RetrieveRelayAddr with recently-seen addresses immediately, instead of
// going cold until the broker re-announces every live consumer.
//
// This is a SPEC_FULL.md addition, not part of the original protocol: the
// directory itself stays the single source of truth and is always
// eventually consistent on its own (spec.md §4.4); mailstate only shortens
// the "unknown, try later" window right after boot. Grounded on the
// teacher's database package for badger open/close lifecycle shape.
package mailstate

import (
	"os"

	"github.com/dgraph-io/badger/v4"

	"grinrelay.dev/chk"
)

// Store is a tiny key-value ledger: suffix -> the one full address last
// known to be live under it.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the badger store rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); chk.E(err) {
		return nil, err
	}
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if chk.E(err) {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Remember persists addr as last-known-live under suffix.
func (s *Store) Remember(suffix, addr string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(suffix), []byte(addr))
	})
}

// Forget removes the entry remembered under suffix, whichever address it
// holds. Only exact single-address suffix keys are modeled: a suffix shared
// by several addresses holds whichever was remembered most recently, and
// forgetting the suffix drops it for all of them, matching the best-effort,
// non-authoritative nature of this snapshot.
func (s *Store) Forget(suffix string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(suffix))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// All invokes fn once per remembered suffix/address pair, for warming a
// fresh Directory's suffix table at startup.
func (s *Store) All(fn func(suffix, addr string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			suffix := string(item.Key())
			if err := item.Value(func(val []byte) error {
				return fn(suffix, string(val))
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recall returns the last-known-live address for suffix, and whether one
// was found.
func (s *Store) Recall(suffix string) (addr string, found bool) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(suffix))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			addr = string(val)
			found = true
			return nil
		})
	})
	chk.W(err)
	return addr, found
}
