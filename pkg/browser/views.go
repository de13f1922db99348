package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// Publish marks the file at path as an open educational resource (or
// withdraws it) and sets its license. Withdrawn files keep their license.
func (b *Browser) Publish(ctx context.Context, zc ZoneContext, path zonepath.Path,
	public bool, license metadata.License) (err error) {
	defer func(start time.Time) { b.observe("publish", zc.Kind, start, err) }(time.Now())

	if !license.Valid() {
		return fmt.Errorf("invalid license %d", int(license))
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	rec, err := b.recordFromDisk(ctx, zc, rootDir, path)
	if err != nil {
		return err
	}
	if rec.Kind == metadata.KindFolder {
		return ErrIsAFolder
	}
	if err := b.perms.CheckPublish(ctx, zc.Actor, zc.Kind, rec); err != nil {
		return err
	}
	return b.store.SetPublicAndLicense(ctx, rec.ID, public, license)
}

// RecordView counts one view of the file at path by the actor and returns
// the updated aggregate stats. Views feed the usage numbers shown next to
// published resources.
func (b *Browser) RecordView(ctx context.Context, zc ZoneContext, path zonepath.Path) (stats metadata.ViewStats, err error) {
	defer func(start time.Time) { b.observe("record_view", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRead(ctx, zc.Actor, zc.Kind, zc.Instance()); err != nil {
		return metadata.ViewStats{}, err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return metadata.ViewStats{}, err
	}
	rec, err := b.recordFromDisk(ctx, zc, rootDir, path)
	if err != nil {
		return metadata.ViewStats{}, err
	}
	return b.store.AddView(ctx, rec.ID, zc.Actor.UserID)
}

// Views returns the aggregate view stats of the file at path.
func (b *Browser) Views(ctx context.Context, zc ZoneContext, path zonepath.Path) (metadata.ViewStats, error) {
	rec, err := b.store.GetFileRecord(ctx, zc.Instance(), path)
	if err != nil {
		if metadata.IsNotFound(err) {
			return metadata.ViewStats{}, nil
		}
		return metadata.ViewStats{}, err
	}
	return b.store.GetViews(ctx, rec.ID)
}

// PublicLink exposes the file at path through an unguessable temporary
// location under the configured link directory and returns its URL-path
// suffix. Links expire with the cleanup pass.
func (b *Browser) PublicLink(ctx context.Context, zc ZoneContext, path zonepath.Path) (link string, err error) {
	defer func(start time.Time) { b.observe("public_link", zc.Kind, start, err) }(time.Now())

	if b.tempLinkDir == "" {
		return "", fmt.Errorf("temporary links are not configured")
	}
	if err := b.perms.CheckRead(ctx, zc.Actor, zc.Kind, zc.Instance()); err != nil {
		return "", err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return "", err
	}
	rec, err := b.recordFromDisk(ctx, zc, rootDir, path)
	if err != nil {
		return "", err
	}
	if rec.Kind == metadata.KindFolder {
		return "", ErrIsAFolder
	}
	return disk.CreateTemporaryPublicLink(zonepath.Resolve(rootDir, path), b.tempLinkDir)
}
