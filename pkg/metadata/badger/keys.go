package badger

import (
	"strconv"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the data types
// into namespaces. Values are JSON-encoded records; keys are never parsed
// back into fields, only used for point lookups and range scans, so path
// characters inside keys are harmless.
//
// Data Type         Prefix  Key Format                       Value
// =====================================================================
// File records      "f:"    f:<instance>|<path>              FileRecord (JSON)
// ID index          "i:"    i:<uuid>                         f-key (bytes)
// Clipboards        "c:"    c:<userID>                       Clipboard (JSON)
// Expanded folders  "e:"    e:<instance>|<path>|<userID>     ExpandedFolder (JSON)
// View counters     "v:"    v:<uuid>:<userID>                count (decimal)
//
// <instance> is Instance.Key(): "<kind>:<scope>:<secondary>", digits and
// colons only, so the first '|' after the prefix is always the delimiter.
//
// Range scan patterns:
//   - all records of one instance:    prefix "f:<instance>|"
//   - subtree of one instance:        prefix scan + Path.IsAncestorOrEqual
//     on the decoded value (a bare string prefix would also match siblings
//     sharing the byte prefix, e.g. "a/bc" under "a/b")
//   - all expanded rows of one tree:  prefix "e:<instance>|"
//   - all views of one file:          prefix "v:<uuid>:"

const (
	prefixFile     = "f:"
	prefixID       = "i:"
	prefixClip     = "c:"
	prefixExpanded = "e:"
	prefixView     = "v:"
)

func keyFile(inst metadata.Instance, path zonepath.Path) []byte {
	return []byte(prefixFile + inst.Key() + "|" + string(path))
}

func keyFilePrefix(inst metadata.Instance) []byte {
	return []byte(prefixFile + inst.Key() + "|")
}

func keyID(id metadata.FileID) []byte {
	return []byte(prefixID + id.String())
}

func keyClipboard(userID int64) []byte {
	return []byte(prefixClip + strconv.FormatInt(userID, 10))
}

func keyExpanded(inst metadata.Instance, path zonepath.Path, userID int64) []byte {
	return []byte(prefixExpanded + inst.Key() + "|" + string(path) + "|" + strconv.FormatInt(userID, 10))
}

func keyExpandedPrefix(inst metadata.Instance) []byte {
	return []byte(prefixExpanded + inst.Key() + "|")
}

func keyView(id metadata.FileID, userID int64) []byte {
	return []byte(prefixView + id.String() + ":" + strconv.FormatInt(userID, 10))
}

func keyViewPrefix(id metadata.FileID) []byte {
	return []byte(prefixView + id.String() + ":")
}
