// Package quota implements per-zone resource accounting: recursive size
// scans, per-zone limits, and incremental tracking inside multi-step
// operations.
package quota

import (
	"github.com/campusfiles/zonefs/pkg/zone"
)

const gib = int64(1) << 30

// MaxLevelsCeiling is the hard limit on directory depth inside any zone,
// regardless of policy. Policies requesting more are clamped.
const MaxLevelsCeiling = 10

// Policy is the resource limit set for one zone kind. Policies are
// configuration, not per-instance state.
type Policy struct {
	MaxFiles   int64 `mapstructure:"max_files" json:"max_files"`
	MaxFolders int64 `mapstructure:"max_folders" json:"max_folders"`
	MaxBytes   int64 `mapstructure:"max_bytes" json:"max_bytes"`
	MaxLevels  uint  `mapstructure:"max_levels" json:"max_levels"`
}

// Clamped returns the policy with MaxLevels bounded by MaxLevelsCeiling
// and a zero MaxLevels replaced by the ceiling.
func (p Policy) Clamped() Policy {
	if p.MaxLevels == 0 || p.MaxLevels > MaxLevelsCeiling {
		p.MaxLevels = MaxLevelsCeiling
	}
	return p
}

// Default policies per zone kind. Institution/center/degree/course
// documents and shared zones are large; group variants, marks and project
// zones are small; works and assignments are per-student trees.
var defaults = map[zone.Kind]Policy{
	zone.AdmiDocIns: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiDocCtr: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiDocDeg: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiDocCrs: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiDocGrp: {MaxFiles: 1000, MaxFolders: 500, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiShrIns: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiShrCtr: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiShrDeg: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiShrCrs: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiShrGrp: {MaxFiles: 1000, MaxFolders: 500, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiTchCrs: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 64 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiTchGrp: {MaxFiles: 1000, MaxFolders: 500, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiAsgUsr: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 2 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiAsgCrs: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 2 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiWrkUsr: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 2 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiWrkCrs: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 2 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiMrkCrs: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiMrkGrp: {MaxFiles: 200, MaxFolders: 20, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiBrfUsr: {MaxFiles: 5000, MaxFolders: 1000, MaxBytes: 32 * gib, MaxLevels: MaxLevelsCeiling},

	zone.AdmiDocPrj: {MaxFiles: 500, MaxFolders: 50, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},
	zone.AdmiAssPrj: {MaxFiles: 200, MaxFolders: 20, MaxBytes: 1 * gib, MaxLevels: MaxLevelsCeiling},
}

// DefaultPolicy returns the built-in limit set for a zone kind. Show zones
// share the policy of their paired admin zone. Unknown kinds get a zero
// policy (everything but depth rejected).
func DefaultPolicy(k zone.Kind) Policy {
	if p, ok := defaults[zone.ClipboardNormalizedZone(k)]; ok {
		return p.Clamped()
	}
	return Policy{MaxLevels: MaxLevelsCeiling}
}
