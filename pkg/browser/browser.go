// Package browser implements the zone file browser: listing, clipboard
// copy/paste, uploads, folder management, hiding, publication and the
// maintenance passes that keep disk trees and their metadata shadow
// aligned.
//
// Disk is the source of truth for tree structure; the metadata store only
// shadows it. Every operation therefore tolerates missing metadata (rows
// are created lazily from disk state) and missing disk entries (stale rows
// are pruned by Reconcile).
package browser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/campusfiles/zonefs/pkg/disk"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/metrics"
	"github.com/campusfiles/zonefs/pkg/permission"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

var (
	// ErrNoClipboard means the user has nothing (valid) on the clipboard.
	ErrNoClipboard = errors.New("clipboard is empty")

	// ErrPasteIntoItself means the destination lies inside the copied subtree.
	ErrPasteIntoItself = errors.New("cannot paste a folder into itself")

	// ErrNotAFolder means a folder operation targeted a file or link.
	ErrNotAFolder = errors.New("not a folder")

	// ErrIsAFolder means a file operation targeted a folder.
	ErrIsAFolder = errors.New("is a folder")

	// ErrFolderNotEmpty means an empty-folder removal hit a non-empty folder.
	// Callers confirm with the user and retry through RemoveSubtree.
	ErrFolderNotEmpty = errors.New("folder is not empty")

	// ErrAlreadyExists means the target name is taken in the destination.
	ErrAlreadyExists = errors.New("an entry with that name already exists")

	// ErrLinkInMarksZone means a link was offered to a marks zone, which
	// only accepts marks files.
	ErrLinkInMarksZone = errors.New("marks zones do not accept links")
)

// ZoneContext carries the zone instance and acting user of one request.
// Actor.Role must be the actor's role in the owning scope of this zone;
// resolution happens upstream.
type ZoneContext struct {
	Actor            permission.Actor
	Kind             zone.Kind
	ScopeID          int64
	SecondaryScopeID int64
}

// Instance returns the metadata instance addressed by the context.
func (zc ZoneContext) Instance() metadata.Instance {
	return metadata.Instance{
		Kind:             zc.Kind,
		ScopeID:          zc.ScopeID,
		SecondaryScopeID: zc.SecondaryScopeID,
	}
}

// Options configures optional browser collaborators. The zero value runs
// with default quotas, an allow-everything upload rule set, no
// notifications and no metrics.
type Options struct {
	// Policies overrides the built-in quota policy per zone kind.
	Policies map[zone.Kind]quota.Policy

	// Uploads restricts accepted upload names and content types.
	Uploads UploadRules

	// Notifier receives file lifecycle events. May be nil.
	Notifier Notifier

	// TempLinkDir is where temporary public download links live. Empty
	// disables public links and their cleanup.
	TempLinkDir string

	// TempLinkTTL bounds the life of temporary public links. Zero means
	// one hour.
	TempLinkTTL time.Duration

	Metrics metrics.BrowserMetrics
}

// Browser executes file browser operations against one zone layout and
// metadata store. Safe for concurrent use.
type Browser struct {
	store       metadata.Store
	perms       *permission.Engine
	layout      zonepath.Layout
	policies    map[zone.Kind]quota.Policy
	uploads     UploadRules
	notifier    Notifier
	tempLinkDir string
	tempLinkTTL time.Duration
	metrics     metrics.BrowserMetrics
}

// New builds a Browser. store, perms and layout are required.
func New(store metadata.Store, perms *permission.Engine, layout zonepath.Layout, opts Options) *Browser {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewBrowserMetrics()
	}
	ttl := opts.TempLinkTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Browser{
		store:       store,
		perms:       perms,
		layout:      layout,
		policies:    opts.Policies,
		uploads:     opts.Uploads,
		notifier:    opts.Notifier,
		tempLinkDir: opts.TempLinkDir,
		tempLinkTTL: ttl,
		metrics:     m,
	}
}

// rootDir resolves the on-disk root of the context's zone instance.
func (b *Browser) rootDir(zc ZoneContext) (string, error) {
	return b.layout.ZoneRoot(zc.Kind, zc.ScopeID, zc.SecondaryScopeID)
}

// policyFor returns the effective quota policy for a zone kind.
func (b *Browser) policyFor(k zone.Kind) quota.Policy {
	if p, ok := b.policies[zone.CanonicalKey(k)]; ok {
		return p.Clamped()
	}
	return quota.DefaultPolicy(k)
}

// observe feeds the operation outcome into metrics, classifying quota and
// permission denials separately from hard failures.
func (b *Browser) observe(op string, k zone.Kind, start time.Time, err error) {
	b.metrics.RecordOperation(op, k.String(), time.Since(start), err)
	if err == nil {
		return
	}
	var qe *quota.ExceededError
	if errors.As(err, &qe) {
		b.metrics.RecordQuotaDenial(k.String(), string(qe.Dimension))
	}
	if permission.IsDenied(err) {
		b.metrics.RecordPermissionDenial(op, k.String())
	}
}

// fileKindOf classifies a disk entry.
func fileKindOf(mode fs.FileMode, name string) metadata.FileKind {
	switch {
	case mode.IsDir():
		return metadata.KindFolder
	case disk.IsLinkName(name):
		return metadata.KindLink
	default:
		return metadata.KindFile
	}
}

// recordFromDisk returns the metadata record of the entry at p, creating it
// from the entry's disk state when absent. This is the lazy self-healing
// path: trees that predate the metadata store, or whose rows were lost,
// regain records on first access with an unknown publisher.
func (b *Browser) recordFromDisk(ctx context.Context, zc ZoneContext, rootDir string,
	p zonepath.Path) (*metadata.FileRecord, error) {

	abs := zonepath.Resolve(rootDir, p)
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	return b.store.UpsertFileRecord(ctx, zc.Instance(), p,
		fileKindOf(info.Mode(), info.Name()), 0, sizeOf(info), info.ModTime())
}

func sizeOf(info fs.FileInfo) int64 {
	if info.IsDir() {
		return 0
	}
	return info.Size()
}

// scanUsage re-scans the zone tree. Usage is always recomputed from disk at
// the start of a mutating operation and tracked incrementally within it;
// no persistent counters exist to drift.
func (b *Browser) scanUsage(rootDir string) (quota.BrowserSize, error) {
	size, err := quota.ScanZone(rootDir)
	if err != nil {
		return quota.BrowserSize{}, fmt.Errorf("failed to measure zone usage: %w", err)
	}
	return size, nil
}
