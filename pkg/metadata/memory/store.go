// Package memory provides an in-memory metadata.Store.
//
// Suitable for tests and single-process deployments that do not need
// metadata to survive restarts. All state lives in maps guarded by a single
// read-write mutex; the coarse lock is simple and correct, and metadata
// operations are short.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// MemoryStore implements metadata.Store backed by process memory.
type MemoryStore struct {
	mu sync.RWMutex

	// files is keyed by instanceKey + "|" + path.
	files map[string]*metadata.FileRecord

	// byID indexes the same records by FileID.
	byID map[metadata.FileID]*metadata.FileRecord

	// clipboards is keyed by owner user id (one slot per user).
	clipboards map[int64]*metadata.Clipboard

	// expanded is keyed by userID + "|" + instanceKey + "|" + path.
	expanded map[string]*metadata.ExpandedFolder

	// views maps file id -> user id -> view count.
	views map[metadata.FileID]map[int64]int64
}

// NewMemoryStore creates an empty in-memory metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:      make(map[string]*metadata.FileRecord),
		byID:       make(map[metadata.FileID]*metadata.FileRecord),
		clipboards: make(map[int64]*metadata.Clipboard),
		expanded:   make(map[string]*metadata.ExpandedFolder),
		views:      make(map[metadata.FileID]map[int64]int64),
	}
}

func fileKey(inst metadata.Instance, path zonepath.Path) string {
	return inst.Key() + "|" + string(path)
}

func expandedKey(userID int64, inst metadata.Instance, path zonepath.Path) string {
	return strconv.FormatInt(userID, 10) + "|" + inst.Key() + "|" + string(path)
}

func copyRecord(r *metadata.FileRecord) *metadata.FileRecord {
	cp := *r
	return &cp
}

// ============================================================================
// File records
// ============================================================================

// UpsertFileRecord implements metadata.Store.
func (s *MemoryStore) UpsertFileRecord(ctx context.Context, inst metadata.Instance, path zonepath.Path,
	kind metadata.FileKind, publisherUserID int64, sizeBytes int64, modifiedAt time.Time) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fileKey(inst, path)
	if rec, ok := s.files[key]; ok {
		rec.SizeBytes = sizeBytes
		rec.ModifiedAt = modifiedAt
		return copyRecord(rec), nil
	}

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
	s.files[key] = rec
	s.byID[rec.ID] = rec
	return copyRecord(rec), nil
}

// GetFileRecord implements metadata.Store.
func (s *MemoryStore) GetFileRecord(ctx context.Context, inst metadata.Instance, path zonepath.Path) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[fileKey(inst, path)]
	if !ok {
		return nil, &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found", Path: string(path)}
	}
	return copyRecord(rec), nil
}

// GetFileRecordByID implements metadata.Store.
func (s *MemoryStore) GetFileRecordByID(ctx context.Context, id metadata.FileID) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found: " + id.String()}
	}
	return copyRecord(rec), nil
}

// SetHidden implements metadata.Store.
func (s *MemoryStore) SetHidden(ctx context.Context, inst metadata.Instance, path zonepath.Path, hidden bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[fileKey(inst, path)]
	if !ok {
		return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found", Path: string(path)}
	}
	rec.Hidden = hidden
	return nil
}

// SetPublicAndLicense implements metadata.Store.
func (s *MemoryStore) SetPublicAndLicense(ctx context.Context, id metadata.FileID, public bool, license metadata.License) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !license.Valid() {
		return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "invalid license value"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "file record not found: " + id.String()}
	}
	rec.Public = public
	rec.License = license
	return nil
}

// RenamePath implements metadata.Store.
func (s *MemoryStore) RenamePath(ctx context.Context, inst metadata.Instance, oldPath, newPath zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := fileKey(inst, oldPath)
	for key, rec := range s.files {
		if key != prefix && !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		delete(s.files, key)
		rec.Path = rec.Path.Rebase(oldPath, newPath)
		s.files[fileKey(inst, rec.Path)] = rec
	}
	return nil
}

// DeletePath implements metadata.Store.
func (s *MemoryStore) DeletePath(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fileKey(inst, path)
	if rec, ok := s.files[key]; ok {
		delete(s.byID, rec.ID)
		delete(s.views, rec.ID)
		delete(s.files, key)
	}
	return nil
}

// DeleteDescendants implements metadata.Store.
func (s *MemoryStore) DeleteDescendants(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	self := fileKey(inst, path)
	prefix := self + "/"
	if path.IsRoot() {
		prefix = inst.Key() + "|"
	}
	for key, rec := range s.files {
		if key != self && strings.HasPrefix(key, prefix) {
			delete(s.byID, rec.ID)
			delete(s.views, rec.ID)
			delete(s.files, key)
		}
	}
	return nil
}

// ListPaths implements metadata.Store.
func (s *MemoryStore) ListPaths(ctx context.Context, inst metadata.Instance) ([]zonepath.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []zonepath.Path
	for _, rec := range s.files {
		if rec.Instance == inst {
			out = append(out, rec.Path)
		}
	}
	return out, nil
}

// SubtreePublisher implements metadata.Store.
func (s *MemoryStore) SubtreePublisher(ctx context.Context, inst metadata.Instance, path zonepath.Path) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	inst = inst.Normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var publisher int64
	found := false
	for _, rec := range s.files {
		if rec.Instance != inst || !path.IsAncestorOrEqual(rec.Path) {
			continue
		}
		if rec.PublisherUserID == 0 {
			return 0, false, nil
		}
		if !found {
			publisher = rec.PublisherUserID
			found = true
			continue
		}
		if rec.PublisherUserID != publisher {
			return 0, false, nil
		}
	}
	if !found {
		return 0, false, nil
	}
	return publisher, true, nil
}

// ============================================================================
// Clipboard
// ============================================================================

// GetClipboard implements metadata.Store.
func (s *MemoryStore) GetClipboard(ctx context.Context, userID int64) (*metadata.Clipboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.clipboards[userID]
	if !ok {
		return nil, nil
	}
	if time.Since(cb.CreatedAt) > metadata.ClipboardTTL {
		delete(s.clipboards, userID)
		return nil, nil
	}
	cp := *cb
	return &cp, nil
}

// SetClipboard implements metadata.Store.
func (s *MemoryStore) SetClipboard(ctx context.Context, cb metadata.Clipboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb.Source = cb.Source.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cb
	s.clipboards[cb.OwnerUserID] = &cp
	return nil
}

// ClearClipboard implements metadata.Store.
func (s *MemoryStore) ClearClipboard(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clipboards, userID)
	return nil
}

// ClearClipboardsUnder implements metadata.Store.
func (s *MemoryStore) ClearClipboardsUnder(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	for user, cb := range s.clipboards {
		if cb.Source == inst && path.IsAncestorOrEqual(cb.Path) {
			delete(s.clipboards, user)
		}
	}
	return nil
}

// ClearExpiredClipboards implements metadata.Store.
func (s *MemoryStore) ClearExpiredClipboards(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for user, cb := range s.clipboards {
		if time.Since(cb.CreatedAt) > ttl {
			delete(s.clipboards, user)
			removed++
		}
	}
	return removed, nil
}

// ============================================================================
// Expanded folders
// ============================================================================

// InsertExpanded implements metadata.Store.
func (s *MemoryStore) InsertExpanded(ctx context.Context, ef metadata.ExpandedFolder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ef.Instance = ef.Instance.Normalized()
	if ef.LastClickedAt.IsZero() {
		ef.LastClickedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := ef
	s.expanded[expandedKey(ef.UserID, ef.Instance, ef.Path)] = &cp
	return nil
}

// RemoveExpanded implements metadata.Store.
func (s *MemoryStore) RemoveExpanded(ctx context.Context, userID int64, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expanded, expandedKey(userID, inst, path))
	return nil
}

// RemoveExpandedSubtree implements metadata.Store.
func (s *MemoryStore) RemoveExpandedSubtree(ctx context.Context, inst metadata.Instance, path zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ef := range s.expanded {
		if ef.Instance == inst && path.IsAncestorOrEqual(ef.Path) {
			delete(s.expanded, key)
		}
	}
	return nil
}

// RenameExpandedPrefix implements metadata.Store.
func (s *MemoryStore) RenameExpandedPrefix(ctx context.Context, inst metadata.Instance, oldPath, newPath zonepath.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst = inst.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ef := range s.expanded {
		if ef.Instance != inst || !oldPath.IsAncestorOrEqual(ef.Path) {
			continue
		}
		delete(s.expanded, key)
		ef.Path = ef.Path.Rebase(oldPath, newPath)
		s.expanded[expandedKey(ef.UserID, inst, ef.Path)] = ef
	}
	return nil
}

// IsExpanded implements metadata.Store.
func (s *MemoryStore) IsExpanded(ctx context.Context, userID int64, inst metadata.Instance, path zonepath.Path) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	inst = inst.Normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.expanded[expandedKey(userID, inst, path)]
	return ok, nil
}

// ListExpanded implements metadata.Store.
func (s *MemoryStore) ListExpanded(ctx context.Context, userID int64, inst metadata.Instance) ([]metadata.ExpandedFolder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst = inst.Normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []metadata.ExpandedFolder
	for _, ef := range s.expanded {
		if ef.UserID == userID && ef.Instance == inst {
			out = append(out, *ef)
		}
	}
	return out, nil
}

// ClearExpiredExpanded implements metadata.Store.
func (s *MemoryStore) ClearExpiredExpanded(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, ef := range s.expanded {
		if time.Since(ef.LastClickedAt) > ttl {
			delete(s.expanded, key)
			removed++
		}
	}
	return removed, nil
}

// ============================================================================
// View tracking
// ============================================================================

// AddView implements metadata.Store.
func (s *MemoryStore) AddView(ctx context.Context, id metadata.FileID, userID int64) (metadata.ViewStats, error) {
	if err := ctx.Err(); err != nil {
		return metadata.ViewStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.views[id]
	if !ok {
		byUser = make(map[int64]int64)
		s.views[id] = byUser
	}
	byUser[userID]++
	return viewStatsLocked(byUser), nil
}

// GetViews implements metadata.Store.
func (s *MemoryStore) GetViews(ctx context.Context, id metadata.FileID) (metadata.ViewStats, error) {
	if err := ctx.Err(); err != nil {
		return metadata.ViewStats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return viewStatsLocked(s.views[id]), nil
}

func viewStatsLocked(byUser map[int64]int64) metadata.ViewStats {
	var stats metadata.ViewStats
	for _, n := range byUser {
		stats.Total += n
		stats.Viewers++
	}
	return stats
}

// ============================================================================
// Lifecycle
// ============================================================================

// Healthcheck implements metadata.Store. Always healthy: no external
// dependencies.
func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close implements metadata.Store.
func (s *MemoryStore) Close() error {
	return nil
}
