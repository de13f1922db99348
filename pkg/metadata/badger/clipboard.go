package badger

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// GetClipboard implements metadata.Store.
//
// Expired entries are purged here rather than by a background job: the next
// read after the TTL elapses deletes the row and reports an empty clipboard.
func (s *Store) GetClipboard(ctx context.Context, userID int64) (*metadata.Clipboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *metadata.Clipboard
	err := s.db.Update(func(txn *badger.Txn) error {
		key := keyClipboard(userID)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return storeErr("get", err)
		}

		var cb *metadata.Clipboard
		if err := item.Value(func(val []byte) error {
			cb, err = decodeClipboard(val)
			return err
		}); err != nil {
			return err
		}

		if time.Since(cb.CreatedAt) > metadata.ClipboardTTL {
			return txn.Delete(key)
		}
		out = cb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetClipboard implements metadata.Store.
func (s *Store) SetClipboard(ctx context.Context, cb metadata.Clipboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb.Source = cb.Source.Normalized()

	data, err := encodeClipboard(&cb)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyClipboard(cb.OwnerUserID), data); err != nil {
			return storeErr("set", err)
		}
		return nil
	})
}

// ClearClipboard implements metadata.Store.
func (s *Store) ClearClipboard(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyClipboard(userID)); err != nil {
			return storeErr("delete", err)
		}
		return nil
	})
}

// ClearClipboardsUnder implements metadata.Store.
func (s *Store) ClearClipboardsUnder(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		keys, err := scanClipboards(txn, func(cb *metadata.Clipboard) bool {
			return cb.Source == inst && path.IsAncestorOrEqual(cb.Path)
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return storeErr("delete", err)
			}
		}
		return nil
	})
}

// ClearExpiredClipboards implements metadata.Store.
func (s *Store) ClearExpiredClipboards(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		keys, err := scanClipboards(txn, func(cb *metadata.Clipboard) bool {
			return time.Since(cb.CreatedAt) > ttl
		})
		if err != nil {
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

// scanClipboards returns the keys of all clipboard rows matching the
// predicate.
func scanClipboards(txn *badger.Txn, match func(*metadata.Clipboard) bool) ([][]byte, error) {
	var keys [][]byte

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixClip)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var cb *metadata.Clipboard
		err := item.Value(func(val []byte) error {
			var derr error
			cb, derr = decodeClipboard(val)
			return derr
		})
		if err != nil {
			return nil, err
		}
		if match(cb) {
			keys = append(keys, item.KeyCopy(nil))
		}
	}
	return keys, nil
}
