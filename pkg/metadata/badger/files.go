package badger

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// UpsertFileRecord implements metadata.Store.
func (s *Store) UpsertFileRecord(ctx context.Context, inst metadata.Instance, path zonepath.Path,
	kind metadata.FileKind, publisherUserID int64, sizeBytes int64, modifiedAt time.Time) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	var out *metadata.FileRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		key := keyFile(inst, path)

		item, err := txn.Get(key)
		switch {
		case err == nil:
			// Existing record: refresh size and mtime, keep identity.
			var rec *metadata.FileRecord
			if err := item.Value(func(val []byte) error {
				rec, err = decodeFileRecord(val)
				return err
			}); err != nil {
				return err
			}
			rec.SizeBytes = sizeBytes
			rec.ModifiedAt = modifiedAt
			data, err := encodeFileRecord(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return storeErr("set", err)
			}
			out = rec
			return nil

		case err == badger.ErrKeyNotFound:
			rec := &metadata.FileRecord{
				ID:              uuid.New(),
				Instance:        inst,
				Path:            path,
				Kind:            kind,
				PublisherUserID: publisherUserID,
				License:         metadata.DefaultLicense,
				SizeBytes:       sizeBytes,
				ModifiedAt:      modifiedAt,
			}
			data, err := encodeFileRecord(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return storeErr("set", err)
			}
			if err := txn.Set(keyID(rec.ID), key); err != nil {
				return storeErr("set", err)
			}
			out = rec
			return nil

		default:
			return storeErr("get", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetFileRecord implements metadata.Store.
func (s *Store) GetFileRecord(ctx context.Context, inst metadata.Instance, path zonepath.Path) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	var out *metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFile(inst, path))
		if err == badger.ErrKeyNotFound {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found", Path: string(path)}
		}
		if err != nil {
			return storeErr("get", err)
		}
		return item.Value(func(val []byte) error {
			out, err = decodeFileRecord(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetFileRecordByID implements metadata.Store.
func (s *Store) GetFileRecordByID(ctx context.Context, id metadata.FileID) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyID(id))
		if err == badger.ErrKeyNotFound {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found: " + id.String()}
		}
		if err != nil {
			return storeErr("get", err)
		}

		var fkey []byte
		if err := item.Value(func(val []byte) error {
			fkey = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		fitem, err := txn.Get(fkey)
		if err == badger.ErrKeyNotFound {
			// Dangling index entry: the record was removed by path.
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found: " + id.String()}
		}
		if err != nil {
			return storeErr("get", err)
		}
		return fitem.Value(func(val []byte) error {
			out, err = decodeFileRecord(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetHidden implements metadata.Store.
func (s *Store) SetHidden(ctx context.Context, inst metadata.Instance, path zonepath.Path, hidden bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.updateRecord(keyFile(inst, path), string(path), func(rec *metadata.FileRecord) error {
		rec.Hidden = hidden
		return nil
	})
}

// SetPublicAndLicense implements metadata.Store.
func (s *Store) SetPublicAndLicense(ctx context.Context, id metadata.FileID, public bool, license metadata.License) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !license.Valid() {
		return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "invalid license value"}
	}

	rec, err := s.GetFileRecordByID(ctx, id)
	if err != nil {
		return err
	}
	return s.updateRecord(keyFile(rec.Instance, rec.Path), string(rec.Path), func(rec *metadata.FileRecord) error {
		rec.Public = public
		rec.License = license
		return nil
	})
}

// updateRecord applies fn to the record stored at key inside one
// transaction.
func (s *Store) updateRecord(key []byte, path string, fn func(*metadata.FileRecord) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found", Path: path}
		}
		if err != nil {
			return storeErr("get", err)
		}

		var rec *metadata.FileRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeFileRecord(val)
			return err
		}); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		data, err := encodeFileRecord(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return storeErr("set", err)
		}
		return nil
	})
}

// RenamePath implements metadata.Store.
//
// The whole prefix rewrite happens in one transaction: either every
// descendant row moves or none does.
func (s *Store) RenamePath(ctx context.Context, inst metadata.Instance, oldPath, newPath zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		recs, err := collectSubtree(txn, inst, oldPath)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := txn.Delete(keyFile(inst, rec.Path)); err != nil {
				return storeErr("delete", err)
			}
			rec.Path = rec.Path.Rebase(oldPath, newPath)
			data, err := encodeFileRecord(rec)
			if err != nil {
				return err
			}
			newKey := keyFile(inst, rec.Path)
			if err := txn.Set(newKey, data); err != nil {
				return storeErr("set", err)
			}
			if err := txn.Set(keyID(rec.ID), newKey); err != nil {
				return storeErr("set", err)
			}
		}
		return nil
	})
}

// DeletePath implements metadata.Store.
func (s *Store) DeletePath(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		return deleteRecord(txn, inst, path)
	})
}

// DeleteDescendants implements metadata.Store.
func (s *Store) DeleteDescendants(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	return s.db.Update(func(txn *badger.Txn) error {
		recs, err := collectSubtree(txn, inst, path)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.Path == path {
				continue
			}
			if err := deleteRecord(txn, inst, rec.Path); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPaths implements metadata.Store.
func (s *Store) ListPaths(ctx context.Context, inst metadata.Instance) ([]zonepath.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	var out []zonepath.Path
	err := s.db.View(func(txn *badger.Txn) error {
		recs, err := collectSubtree(txn, inst, zonepath.Root)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			out = append(out, rec.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubtreePublisher implements metadata.Store.
func (s *Store) SubtreePublisher(ctx context.Context, inst metadata.Instance, path zonepath.Path) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	inst = inst.Normalized()

	var publisher int64
	sole := false
	err := s.db.View(func(txn *badger.Txn) error {
		recs, err := collectSubtree(txn, inst, path)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.PublisherUserID == 0 {
				publisher, sole = 0, false
				return nil
			}
			if publisher == 0 {
				publisher, sole = rec.PublisherUserID, true
				continue
			}
			if rec.PublisherUserID != publisher {
				publisher, sole = 0, false
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return publisher, sole, nil
}

// collectSubtree returns every record of inst whose path is at or under
// path, decoded. The ancestor check runs on the decoded path because a raw
// byte prefix would also match siblings sharing the prefix ("a/bc" vs "a/b").
func collectSubtree(txn *badger.Txn, inst metadata.Instance, path zonepath.Path) ([]*metadata.FileRecord, error) {
	var out []*metadata.FileRecord

	opts := badger.DefaultIteratorOptions
	opts.Prefix = keyFilePrefix(inst)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var rec *metadata.FileRecord
		err := it.Item().Value(func(val []byte) error {
			var derr error
			rec, derr = decodeFileRecord(val)
			return derr
		})
		if err != nil {
			return nil, err
		}
		if path.IsAncestorOrEqual(rec.Path) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func deleteRecord(txn *badger.Txn, inst metadata.Instance, path zonepath.Path) error {
	key := keyFile(inst, path)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return storeErr("get", err)
	}

	var rec *metadata.FileRecord
	if err := item.Value(func(val []byte) error {
		rec, err = decodeFileRecord(val)
		return err
	}); err != nil {
		return err
	}

	if err := txn.Delete(key); err != nil {
		return storeErr("delete", err)
	}
	if err := txn.Delete(keyID(rec.ID)); err != nil {
		return storeErr("delete", err)
	}
	return deleteViews(txn, rec.ID)
}
