// Package state keeps consumer offsets in a local Badger store so a
// restarted sink resumes from where the last commit left off even when the
// broker's group state is unavailable.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	dirMode       = 0o755 // Default directory permissions
	offsetBase    = 10    // Base for offset string parsing
	offsetBitSize = 64    // Bit size for offset parsing
	keySplitParts = 2     // Number of parts when splitting topic:partition
)

// ErrOffsetNotFound is returned when no offset was ever saved for a
// topic/partition pair.
var ErrOffsetNotFound = errors.New("offset not found")

// OffsetStore persists committed offsets keyed by "topic:partition".
type OffsetStore struct {
	db *badger.DB
}

func Open(path string) (*OffsetStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("create state path: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open offset store: %w", err)
	}
	return &OffsetStore{db: db}, nil
}

func offsetKey(topic string, partition int) []byte {
	return fmt.Appendf(nil, "%s:%d", topic, partition)
}

// SaveOffset records the highest committed offset for a partition.
func (s *OffsetStore) SaveOffset(topic string, partition int, offset int64) error {
	val := []byte(strconv.FormatInt(offset, offsetBase))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(offsetKey(topic, partition), val)
	})
}

// GetOffset returns the last saved offset, or ErrOffsetNotFound.
func (s *OffsetStore) GetOffset(topic string, partition int) (int64, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(offsetKey(topic, partition))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrOffsetNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), offsetBase, offsetBitSize)
}

// StatsByTopic counts tracked partitions per topic using an iterator.
func (s *OffsetStore) StatsByTopic() (map[string]int, error) {
	stats := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			topic := strings.SplitN(key, ":", keySplitParts)[0]
			stats[topic]++
		}
		return nil
	})
	return stats, err
}

func (s *OffsetStore) Close() error {
	return s.db.Close()
}
