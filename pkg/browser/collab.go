package browser

import (
	"context"

	"github.com/campusfiles/zonefs/pkg/metadata"
)

// Notifier receives file lifecycle events the surrounding platform turns
// into user notifications (new course documents, removed marks files).
//
// Notification is best effort: the browser logs failures and continues,
// since a lost notification must never roll back a completed disk
// operation.
type Notifier interface {
	// FileAdded fires once per upload, link creation and paste. A subtree
	// paste fires it for the first pasted file only.
	FileAdded(ctx context.Context, inst metadata.Instance, rec *metadata.FileRecord) error

	// FileRemoved fires when a tracked file is removed, with the record id
	// it had.
	FileRemoved(ctx context.Context, inst metadata.Instance, id metadata.FileID) error
}
