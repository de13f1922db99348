package browser

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// UploadRejectedError reports an upload refused by the upload rules.
type UploadRejectedError struct {
	Name   string
	Reason string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("upload %q rejected: %s", e.Name, e.Reason)
}

// UploadRules restricts what Upload accepts. The zero value accepts
// everything.
type UploadRules struct {
	// AllowedExtensions lists acceptable filename extensions without the
	// leading dot, lowercase. Empty allows any extension.
	AllowedExtensions []string `mapstructure:"allowed_extensions"`

	// AllowedMIME lists acceptable detected content types. Entries ending
	// in "/" match as prefixes ("image/" accepts every image type). Empty
	// allows any type. Detection looks at content, not at the filename.
	AllowedMIME []string `mapstructure:"allowed_mime"`

	// MaxSizeBytes caps a single upload. Zero means no per-file cap; the
	// zone byte quota still applies.
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

func (r UploadRules) checkName(name string) error {
	if len(r.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, allowed := range r.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &UploadRejectedError{Name: name, Reason: fmt.Sprintf("extension %q is not allowed", ext)}
}

func (r UploadRules) checkContent(name, path string) error {
	if len(r.AllowedMIME) == 0 {
		return nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect content type of %q: %w", name, err)
	}
	for _, allowed := range r.AllowedMIME {
		if strings.HasSuffix(allowed, "/") {
			if strings.HasPrefix(mt.String(), allowed) {
				return nil
			}
		} else if mt.Is(allowed) {
			return nil
		}
	}
	return &UploadRejectedError{Name: name, Reason: fmt.Sprintf("content type %q is not allowed", mt.String())}
}

// CreateFolder creates an empty folder named name inside parent.
func (b *Browser) CreateFolder(ctx context.Context, zc ZoneContext, parent zonepath.Path,
	name string) (rec *metadata.FileRecord, err error) {
	defer func(start time.Time) { b.observe("create_folder", zc.Kind, start, err) }(time.Now())

	path, err := zonepath.Join(parent, name)
	if err != nil {
		return nil, err
	}
	policy := b.policyFor(zc.Kind)
	if err := b.perms.CheckCreate(ctx, zc.Actor, zc.Kind, zc.Instance(), parent); err != nil {
		return nil, err
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return nil, err
	}
	if err := b.requireFolder(rootDir, parent); err != nil {
		return nil, err
	}
	size, err := b.scanUsage(rootDir)
	if err != nil {
		return nil, err
	}
	size.AddFolder(path.Level())
	if err := quota.Check(size, policy); err != nil {
		return nil, err
	}

	abs := zonepath.Resolve(rootDir, path)
	if _, err := os.Lstat(abs); err == nil {
		return nil, ErrAlreadyExists
	}
	if err := disk.Mkdir(abs); err != nil {
		return nil, err
	}
	return b.store.UpsertFileRecord(ctx, zc.Instance(), path, metadata.KindFolder,
		zc.Actor.UserID, 0, time.Now())
}

// CreateLink stores a link to rawURL inside parent. The on-disk name is
// derived from title (or the URL) and always carries the link suffix.
func (b *Browser) CreateLink(ctx context.Context, zc ZoneContext, parent zonepath.Path,
	title, rawURL string) (rec *metadata.FileRecord, err error) {
	defer func(start time.Time) { b.observe("create_link", zc.Kind, start, err) }(time.Now())

	if zone.IsMarks(zc.Kind) {
		return nil, ErrLinkInMarksZone
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid link target %q", rawURL)
	}

	path, err := zonepath.Join(parent, disk.LinkFilename(title, rawURL))
	if err != nil {
		return nil, err
	}
	policy := b.policyFor(zc.Kind)
	if err := b.perms.CheckCreate(ctx, zc.Actor, zc.Kind, zc.Instance(), parent); err != nil {
		return nil, err
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return nil, err
	}
	if err := b.requireFolder(rootDir, parent); err != nil {
		return nil, err
	}
	size, err := b.scanUsage(rootDir)
	if err != nil {
		return nil, err
	}
	contentLen := int64(len(rawURL)) + 1
	size.AddFile(path.Level(), contentLen)
	if err := quota.Check(size, policy); err != nil {
		return nil, err
	}

	abs := zonepath.Resolve(rootDir, path)
	if _, err := os.Lstat(abs); err == nil {
		return nil, ErrAlreadyExists
	}
	if err := disk.WriteLink(abs, rawURL); err != nil {
		return nil, err
	}

	rec, err = b.store.UpsertFileRecord(ctx, zc.Instance(), path, metadata.KindLink,
		zc.Actor.UserID, contentLen, time.Now())
	if err != nil {
		return nil, err
	}
	b.notifyAdded(ctx, zc, rec)
	return rec, nil
}

// Upload streams content into a new file named name inside parent.
//
// The content lands in a temporary file first and is validated there
// (upload rules, marks table check, quota with the actual size) before an
// atomic rename into place. A rejected or failed upload leaves no trace
// under the final name.
func (b *Browser) Upload(ctx context.Context, zc ZoneContext, parent zonepath.Path,
	name string, content io.Reader) (rec *metadata.FileRecord, err error) {
	defer func(start time.Time) { b.observe("upload", zc.Kind, start, err) }(time.Now())

	path, err := zonepath.Join(parent, name)
	if err != nil {
		return nil, err
	}
	policy := b.policyFor(zc.Kind)
	if err := b.perms.CheckCreate(ctx, zc.Actor, zc.Kind, zc.Instance(), parent); err != nil {
		return nil, err
	}
	if err := b.uploads.checkName(name); err != nil {
		return nil, err
	}
	if zone.IsMarks(zc.Kind) && disk.IsLinkName(name) {
		return nil, ErrLinkInMarksZone
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return nil, err
	}
	if err := b.requireFolder(rootDir, parent); err != nil {
		return nil, err
	}
	abs := zonepath.Resolve(rootDir, path)
	if _, err := os.Lstat(abs); err == nil {
		return nil, ErrAlreadyExists
	}

	// Usage is measured before the temporary file exists, so the temp file
	// never counts against the zone it is being uploaded into.
	size, err := b.scanUsage(rootDir)
	if err != nil {
		return nil, err
	}

	tmp, n, err := disk.WriteTemp(zonepath.Resolve(rootDir, parent), content)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove rejected upload %s: %v", tmp, rmErr)
			}
		}
	}()

	if b.uploads.MaxSizeBytes > 0 && n > b.uploads.MaxSizeBytes {
		return nil, &UploadRejectedError{Name: name, Reason: "file is too large"}
	}
	if err := b.uploads.checkContent(name, tmp); err != nil {
		return nil, err
	}
	if zone.IsMarks(zc.Kind) {
		// Everything received into a marks zone must be a marks file.
		if err := validateMarksFile(tmp); err != nil {
			return nil, err
		}
	}
	size.AddFile(path.Level(), n)
	if err := quota.Check(size, policy); err != nil {
		return nil, err
	}

	if err := disk.Rename(tmp, abs); err != nil {
		return nil, err
	}

	rec, err = b.store.UpsertFileRecord(ctx, zc.Instance(), path,
		fileKindOf(0, name), zc.Actor.UserID, n, time.Now())
	if err != nil {
		return nil, err
	}
	b.metrics.RecordBytesUploaded(zc.Kind.String(), n)
	b.notifyAdded(ctx, zc, rec)
	return rec, nil
}

// requireFolder verifies the entry at path exists and is a folder. New
// entries are only ever created inside folders.
func (b *Browser) requireFolder(rootDir string, path zonepath.Path) error {
	info, err := os.Lstat(zonepath.Resolve(rootDir, path))
	if err != nil {
		return fmt.Errorf("failed to stat folder %q: %w", path, err)
	}
	if !info.IsDir() {
		return ErrNotAFolder
	}
	return nil
}

func (b *Browser) notifyAdded(ctx context.Context, zc ZoneContext, rec *metadata.FileRecord) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.FileAdded(ctx, zc.Instance(), rec); err != nil {
		logger.Warn("failed to notify added file %s: %v", rec.ID, err)
	}
}
