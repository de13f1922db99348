package badger

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// InsertExpanded implements metadata.Store.
func (s *Store) InsertExpanded(ctx context.Context, ef metadata.ExpandedFolder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ef.Instance = ef.Instance.Normalized()
	if ef.LastClickedAt.IsZero() {
		ef.LastClickedAt = time.Now()
	}

	data, err := encodeExpanded(&ef)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyExpanded(ef.Instance, ef.Path, ef.UserID), data); err != nil {
			return storeErr("set", err)
		}
		return nil
	})
}

// RemoveExpanded implements metadata.Store.
func (s *Store) RemoveExpanded(ctx context.Context, userID int64, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyExpanded(inst, path, userID)); err != nil {
			return storeErr("delete", err)
		}
		return nil
	})
}

// RemoveExpandedSubtree implements metadata.Store.
func (s *Store) RemoveExpandedSubtree(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		rows, err := scanExpanded(txn, inst, func(ef *metadata.ExpandedFolder) bool {
			return path.IsAncestorOrEqual(ef.Path)
		})
		if err != nil {
			return err
		}
		for _, ef := range rows {
			if err := txn.Delete(keyExpanded(inst, ef.Path, ef.UserID)); err != nil {
				return storeErr("delete", err)
			}
		}
		return nil
	})
}

// RenameExpandedPrefix implements metadata.Store.
func (s *Store) RenameExpandedPrefix(ctx context.Context, inst metadata.Instance, oldPath, newPath zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		rows, err := scanExpanded(txn, inst, func(ef *metadata.ExpandedFolder) bool {
			return oldPath.IsAncestorOrEqual(ef.Path)
		})
		if err != nil {
			return err
		}
		for _, ef := range rows {
			if err := txn.Delete(keyExpanded(inst, ef.Path, ef.UserID)); err != nil {
				return storeErr("delete", err)
			}
			ef.Path = ef.Path.Rebase(oldPath, newPath)
			data, err := encodeExpanded(ef)
			if err != nil {
				return err
			}
			if err := txn.Set(keyExpanded(inst, ef.Path, ef.UserID), data); err != nil {
				return storeErr("set", err)
			}
		}
		return nil
	})
}

// IsExpanded implements metadata.Store.
func (s *Store) IsExpanded(ctx context.Context, userID int64, inst metadata.Instance, path zonepath.Path) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	inst = inst.Normalized()

	expanded := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyExpanded(inst, path, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return storeErr("get", err)
		}
		expanded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return expanded, nil
}

// ListExpanded implements metadata.Store.
func (s *Store) ListExpanded(ctx context.Context, userID int64, inst metadata.Instance) ([]metadata.ExpandedFolder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	var out []metadata.ExpandedFolder
	err := s.db.View(func(txn *badger.Txn) error {
		rows, err := scanExpanded(txn, inst, func(ef *metadata.ExpandedFolder) bool {
			return ef.UserID == userID
		})
		if err != nil {
			return err
		}
		for _, ef := range rows {
			out = append(out, *ef)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearExpiredExpanded implements metadata.Store.
//
// Scans the whole expanded namespace; meant for the periodic cleanup pass,
// not for request paths.
func (s *Store) ClearExpiredExpanded(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte

		collect := func() error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefixExpanded)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				var ef *metadata.ExpandedFolder
				err := item.Value(func(val []byte) error {
					var derr error
					ef, derr = decodeExpanded(val)
					return derr
				})
				if err != nil {
					return err
				}
				if time.Since(ef.LastClickedAt) > ttl {
					keys = append(keys, item.KeyCopy(nil))
				}
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
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// scanExpanded returns decoded expanded rows of one instance matching the
// predicate.
func scanExpanded(txn *badger.Txn, inst metadata.Instance, match func(*metadata.ExpandedFolder) bool) ([]*metadata.ExpandedFolder, error) {
	var out []*metadata.ExpandedFolder

	opts := badger.DefaultIteratorOptions
	opts.Prefix = keyExpandedPrefix(inst)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var ef *metadata.ExpandedFolder
		err := it.Item().Value(func(val []byte) error {
			var derr error
			ef, derr = decodeExpanded(val)
			return derr
		})
		if err != nil {
			return nil, err
		}
		if match(ef) {
			out = append(out, ef)
		}
	}
	return out, nil
}
