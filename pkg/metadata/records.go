package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// FileID uniquely identifies a file record.
//
// Generated with UUID v4 on first upsert and stable for the lifetime of the
// record, including across renames (renames rewrite the path, not the id).
type FileID = uuid.UUID

// Instance identifies one zone instance: a zone kind plus the owning entity.
//
// SecondaryScopeID is only set for zones keyed by a second scope (works and
// assignment zones, where the course owns the zone but each student has a
// separate tree).
type Instance struct {
	Kind             zone.Kind `json:"kind"`
	ScopeID          int64     `json:"scope_id"`
	SecondaryScopeID int64     `json:"secondary_scope_id,omitempty"`
}

// Key returns a stable string key for the instance, used by key-value
// backends and safe for use in composite keys (contains no '|').
func (i Instance) Key() string {
	return fmt.Sprintf("%d:%d:%d", int(i.Kind), i.ScopeID, i.SecondaryScopeID)
}

// Normalized returns the instance with the zone kind replaced by its
// canonical storage kind. All zone kinds addressing the same directory tree
// (show/admin pairs, student/teacher views of works and assignments) share
// metadata rows, so records are always keyed by the canonical variant.
func (i Instance) Normalized() Instance {
	i.Kind = zone.CanonicalKey(i.Kind)
	return i
}

// FileKind is the kind of a disk entry.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindFile
	KindFolder
	KindLink
)

func (k FileKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// License is the publication license attached to a public file.
type License int

const (
	// LicenseUnknown covers files published under some other license.
	LicenseUnknown License = iota
	LicenseAllRightsReserved
	LicenseCCBY
	LicenseCCBYSA
	LicenseCCBYND
	LicenseCCBYNC
	LicenseCCBYNCSA
	LicenseCCBYNCND

	numLicenses
)

// NumLicenses is the number of defined licenses.
const NumLicenses = int(numLicenses)

// DefaultLicense is assigned to records created without an explicit license.
const DefaultLicense = LicenseAllRightsReserved

func (l License) String() string {
	switch l {
	case LicenseAllRightsReserved:
		return "all_rights_reserved"
	case LicenseCCBY:
		return "cc_by"
	case LicenseCCBYSA:
		return "cc_by_sa"
	case LicenseCCBYND:
		return "cc_by_nd"
	case LicenseCCBYNC:
		return "cc_by_nc"
	case LicenseCCBYNCSA:
		return "cc_by_nc_sa"
	case LicenseCCBYNCND:
		return "cc_by_nc_nd"
	default:
		return "unknown"
	}
}

// Valid reports whether l is a defined license value.
func (l License) Valid() bool {
	return l >= LicenseUnknown && l < numLicenses
}

// FileRecord is the metadata shadow of one disk entry.
//
// At most one record exists per (instance, path); records are lazily created
// on first access, so a missing record is not an error for readers.
type FileRecord struct {
	ID       FileID        `json:"id"`
	Instance Instance      `json:"instance"`
	Path     zonepath.Path `json:"path"`
	Kind     FileKind      `json:"kind"`

	// PublisherUserID is the user who uploaded or created the entry.
	// Zero when unknown (record created lazily for a pre-existing entry).
	PublisherUserID int64 `json:"publisher_user_id,omitempty"`

	// Hidden marks the entry invisible to non-privileged viewers.
	// Only meaningful in hide-capable zones.
	Hidden bool `json:"hidden,omitempty"`

	// Public marks the entry discoverable outside its owning scope (OER).
	Public  bool    `json:"public,omitempty"`
	License License `json:"license"`

	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Clipboard is the single per-user copy slot.
//
// One row per user across all zones. Overwritten on every copy, read (never
// consumed) on paste, removed when its source subtree is removed or when it
// outlives the staleness TTL.
type Clipboard struct {
	OwnerUserID int64         `json:"owner_user_id"`
	Source      Instance      `json:"source"`
	Path        zonepath.Path `json:"path"`
	Kind        FileKind      `json:"kind"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ClipboardTTL is how long a clipboard entry stays valid. Entries older
// than this are purged lazily on read and by the cleanup pass.
const ClipboardTTL = 15 * time.Minute

// ExpandedFolder records that a user currently has a folder expanded in the
// UI tree of one zone instance.
type ExpandedFolder struct {
	UserID        int64         `json:"user_id"`
	Instance      Instance      `json:"instance"`
	Path          zonepath.Path `json:"path"`
	LastClickedAt time.Time     `json:"last_clicked_at"`
}

// ExpandedTTL is how long an expanded-folder row survives without being
// clicked again before the cleanup pass drops it.
const ExpandedTTL = 7 * 24 * time.Hour

// ViewStats aggregates view counters for one file.
type ViewStats struct {
	// Total is the total number of recorded views.
	Total int64 `json:"total"`

	// Viewers is the number of distinct users that viewed the file.
	Viewers int64 `json:"viewers"`
}
