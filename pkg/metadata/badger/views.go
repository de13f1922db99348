package badger

import (
	"context"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/campusfiles/zonefs/pkg/metadata"
)

// View counters are stored one key per (file, user) with a decimal count as
// the value, so incrementing one user's counter never rewrites another's.

// AddView implements metadata.Store.
func (s *Store) AddView(ctx context.Context, id metadata.FileID, userID int64) (metadata.ViewStats, error) {
	if err := ctx.Err(); err != nil {
		return metadata.ViewStats{}, err
	}

	var stats metadata.ViewStats
	err := s.db.Update(func(txn *badger.Txn) error {
		key := keyView(id, userID)

		count := int64(0)
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(val []byte) error {
				count, err = strconv.ParseInt(string(val), 10, 64)
				return err
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return storeErr("get", err)
		}

		count++
		if err := txn.Set(key, []byte(strconv.FormatInt(count, 10))); err != nil {
			return storeErr("set", err)
		}

		var serr error
		stats, serr = sumViews(txn, id)
		return serr
	})
	if err != nil {
		return metadata.ViewStats{}, err
	}
	return stats, nil
}

// GetViews implements metadata.Store.
func (s *Store) GetViews(ctx context.Context, id metadata.FileID) (metadata.ViewStats, error) {
	if err := ctx.Err(); err != nil {
		return metadata.ViewStats{}, err
	}

	var stats metadata.ViewStats
	err := s.db.View(func(txn *badger.Txn) error {
		var serr error
		stats, serr = sumViews(txn, id)
		return serr
	})
	if err != nil {
		return metadata.ViewStats{}, err
	}
	return stats, nil
}

func sumViews(txn *badger.Txn, id metadata.FileID) (metadata.ViewStats, error) {
	var stats metadata.ViewStats

	opts := badger.DefaultIteratorOptions
	opts.Prefix = keyViewPrefix(id)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			n, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return err
			}
			stats.Total += n
			stats.Viewers++
			return nil
		})
		if err != nil {
			return metadata.ViewStats{}, err
		}
	}
	return stats, nil
}

// deleteViews drops every view counter of one file. Called when the file's
// record is deleted.
func deleteViews(txn *badger.Txn, id metadata.FileID) error {
	var keys [][]byte

	collect := func() error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyViewPrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	}
	if err := collect(); err != nil {
		return err
	}

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return storeErr("delete", err)
		}
	}
	return nil
}
