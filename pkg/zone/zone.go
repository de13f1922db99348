// Package zone defines the closed set of file-storage zones and their
// static attributes.
//
// A zone is one of the ~29 distinct purposes a file tree can serve inside
// the platform (course documents, shared files, marks, assignments, works,
// briefcase, project documents, ...). Every zone instance is owned by one
// entity of the zone's scope kind (institution, center, degree, course,
// group, user or project) and is backed by a real directory tree on disk.
//
// All data in this package is immutable and defined at compile time.
package zone

// Kind identifies one zone purpose.
type Kind int

const (
	Unknown Kind = iota

	// Course document zones (read-only "show" view and editable "admin" view
	// over the same directory tree).
	ShowDocCrs
	ShowMrkCrs
	AdmiDocCrs

	// Shared file zones, writable by every member of the owning scope.
	AdmiShrCrs
	AdmiShrGrp

	// Works: per-student area inside a course. The "Usr" variant is one
	// student's tree, the "Crs" variant is a teacher browsing any student.
	AdmiWrkUsr
	AdmiWrkCrs

	AdmiMrkCrs
	AdmiBrfUsr

	ShowDocGrp
	AdmiDocGrp
	ShowMrkGrp
	AdmiMrkGrp

	// Assignments: one level-1 folder per assignment, managed externally.
	AdmiAsgUsr
	AdmiAsgCrs

	ShowDocDeg
	AdmiDocDeg
	ShowDocCtr
	AdmiDocCtr
	ShowDocIns
	AdmiDocIns

	AdmiShrDeg
	AdmiShrCtr
	AdmiShrIns

	// Teachers-private zones (course/group areas not visible to students).
	AdmiTchCrs
	AdmiTchGrp

	// Project zones.
	AdmiDocPrj
	AdmiAssPrj

	numKinds
)

// NumKinds is the number of defined zone kinds, including Unknown.
const NumKinds = int(numKinds)

// ScopeKind is the kind of hierarchy entity that owns a zone instance.
type ScopeKind int

const (
	ScopeSystem ScopeKind = iota
	ScopeInstitution
	ScopeCenter
	ScopeDegree
	ScopeCourse
	ScopeGroup
	ScopeUser
	ScopeProject
)

func (s ScopeKind) String() string {
	switch s {
	case ScopeSystem:
		return "system"
	case ScopeInstitution:
		return "institution"
	case ScopeCenter:
		return "center"
	case ScopeDegree:
		return "degree"
	case ScopeCourse:
		return "course"
	case ScopeGroup:
		return "group"
	case ScopeUser:
		return "user"
	case ScopeProject:
		return "project"
	default:
		return "unknown"
	}
}

// attrs holds the static per-kind attribute row.
type attrs struct {
	name     string // zone name for logs and keys
	root     string // internal name of the root folder on disk
	scope    ScopeKind
	editable bool // true for zones that accept mutating operations
	hideable bool // true for zones whose entries can be hidden/unhidden
	marks    bool // true for marks zones (HTML table validation applies)
	view     Kind // paired read-only view zone, or the kind itself
	admin    Kind // paired editable admin zone, or the kind itself
}

var table = [numKinds]attrs{
	Unknown: {name: "unknown", root: "", scope: ScopeSystem},

	ShowDocCrs: {name: "show_doc_crs", root: "doc", scope: ScopeCourse, hideable: true, view: ShowDocCrs, admin: AdmiDocCrs},
	AdmiDocCrs: {name: "admi_doc_crs", root: "doc", scope: ScopeCourse, editable: true, hideable: true, view: ShowDocCrs, admin: AdmiDocCrs},
	ShowDocGrp: {name: "show_doc_grp", root: "doc", scope: ScopeGroup, hideable: true, view: ShowDocGrp, admin: AdmiDocGrp},
	AdmiDocGrp: {name: "admi_doc_grp", root: "doc", scope: ScopeGroup, editable: true, hideable: true, view: ShowDocGrp, admin: AdmiDocGrp},
	ShowDocDeg: {name: "show_doc_deg", root: "doc", scope: ScopeDegree, hideable: true, view: ShowDocDeg, admin: AdmiDocDeg},
	AdmiDocDeg: {name: "admi_doc_deg", root: "doc", scope: ScopeDegree, editable: true, hideable: true, view: ShowDocDeg, admin: AdmiDocDeg},
	ShowDocCtr: {name: "show_doc_ctr", root: "doc", scope: ScopeCenter, hideable: true, view: ShowDocCtr, admin: AdmiDocCtr},
	AdmiDocCtr: {name: "admi_doc_ctr", root: "doc", scope: ScopeCenter, editable: true, hideable: true, view: ShowDocCtr, admin: AdmiDocCtr},
	ShowDocIns: {name: "show_doc_ins", root: "doc", scope: ScopeInstitution, hideable: true, view: ShowDocIns, admin: AdmiDocIns},
	AdmiDocIns: {name: "admi_doc_ins", root: "doc", scope: ScopeInstitution, editable: true, hideable: true, view: ShowDocIns, admin: AdmiDocIns},

	AdmiShrCrs: {name: "admi_shr_crs", root: "comun", scope: ScopeCourse, editable: true},
	AdmiShrGrp: {name: "admi_shr_grp", root: "comun", scope: ScopeGroup, editable: true},
	AdmiShrDeg: {name: "admi_shr_deg", root: "sha", scope: ScopeDegree, editable: true},
	AdmiShrCtr: {name: "admi_shr_ctr", root: "sha", scope: ScopeCenter, editable: true},
	AdmiShrIns: {name: "admi_shr_ins", root: "sha", scope: ScopeInstitution, editable: true},

	AdmiTchCrs: {name: "admi_tch_crs", root: "tch", scope: ScopeCourse, editable: true},
	AdmiTchGrp: {name: "admi_tch_grp", root: "tch", scope: ScopeGroup, editable: true},

	ShowMrkCrs: {name: "show_mrk_crs", root: "calificaciones", scope: ScopeCourse, hideable: true, marks: true, view: ShowMrkCrs, admin: AdmiMrkCrs},
	AdmiMrkCrs: {name: "admi_mrk_crs", root: "calificaciones", scope: ScopeCourse, editable: true, hideable: true, marks: true, view: ShowMrkCrs, admin: AdmiMrkCrs},
	ShowMrkGrp: {name: "show_mrk_grp", root: "calificaciones", scope: ScopeGroup, hideable: true, marks: true, view: ShowMrkGrp, admin: AdmiMrkGrp},
	AdmiMrkGrp: {name: "admi_mrk_grp", root: "calificaciones", scope: ScopeGroup, editable: true, hideable: true, marks: true, view: ShowMrkGrp, admin: AdmiMrkGrp},

	AdmiAsgUsr: {name: "admi_asg_usr", root: "actividades", scope: ScopeCourse, editable: true},
	AdmiAsgCrs: {name: "admi_asg_crs", root: "actividades", scope: ScopeCourse, editable: true},
	AdmiWrkUsr: {name: "admi_wrk_usr", root: "trabajos", scope: ScopeCourse, editable: true},
	AdmiWrkCrs: {name: "admi_wrk_crs", root: "trabajos", scope: ScopeCourse, editable: true},

	AdmiBrfUsr: {name: "admi_brf_usr", root: "maletin", scope: ScopeUser, editable: true},

	AdmiDocPrj: {name: "admi_doc_prj", root: "doc", scope: ScopeProject, editable: true},
	AdmiAssPrj: {name: "admi_ass_prj", root: "ass", scope: ScopeProject, editable: true},
}

// Valid reports whether k is a defined zone kind other than Unknown.
func (k Kind) Valid() bool {
	return k > Unknown && k < numKinds
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "invalid"
	}
	return table[k].name
}

// KindByName returns the kind with the given name, as produced by String.
// Used to key configuration sections by zone.
func KindByName(name string) (Kind, bool) {
	for k := Kind(1); k < numKinds; k++ {
		if table[k].name == name {
			return k, true
		}
	}
	return Unknown, false
}

// RootFolderName returns the internal name of the zone's root folder on disk.
func RootFolderName(k Kind) string {
	if !k.Valid() {
		return ""
	}
	return table[k].root
}

// IsEditable reports whether mutating operations are ever allowed in k.
// Read-only "show" zones return false.
func IsEditable(k Kind) bool {
	if !k.Valid() {
		return false
	}
	return table[k].editable
}

// ScopeKindOf returns the kind of entity that owns instances of k.
func ScopeKindOf(k Kind) ScopeKind {
	if !k.Valid() {
		return ScopeSystem
	}
	return table[k].scope
}

// IsHideCapable reports whether entries in k can be hidden from
// non-privileged viewers (documents and marks zones).
func IsHideCapable(k Kind) bool {
	if !k.Valid() {
		return false
	}
	return table[k].hideable
}

// IsMarks reports whether k is a marks zone, where uploaded and pasted files
// must be HTML documents carrying a single marks table.
func IsMarks(k Kind) bool {
	if !k.Valid() {
		return false
	}
	return table[k].marks
}

// EquivalentViewZone returns the paired read-only "show" zone for an admin
// zone (e.g. AdmiDocCrs -> ShowDocCrs). Zones without a paired view return
// themselves.
func EquivalentViewZone(k Kind) Kind {
	if !k.Valid() {
		return Unknown
	}
	if table[k].view == Unknown {
		return k
	}
	return table[k].view
}

// ClipboardNormalizedZone maps a "show" zone to its paired admin zone
// (e.g. ShowDocCrs -> AdmiDocCrs). Only admin zones are paste targets, so
// clipboard bookkeeping always records the admin variant. Zones without a
// pair return themselves.
func ClipboardNormalizedZone(k Kind) Kind {
	if !k.Valid() {
		return Unknown
	}
	if table[k].admin == Unknown {
		return k
	}
	return table[k].admin
}

// CanonicalKey returns the kind under which instances of k keep shared
// state. Show zones map to their paired admin zone, and the teacher-side
// works and assignment zones map to the student variant: all of these
// address the same directory tree, so they must address the same metadata.
func CanonicalKey(k Kind) Kind {
	switch k {
	case AdmiAsgCrs:
		return AdmiAsgUsr
	case AdmiWrkCrs:
		return AdmiWrkUsr
	default:
		return ClipboardNormalizedZone(k)
	}
}

// UsesSecondaryScope reports whether instances of k are keyed by a second
// scope id in addition to the owning scope (the student's user id for works
// and assignment zones inside a course).
func UsesSecondaryScope(k Kind) bool {
	switch k {
	case AdmiAsgUsr, AdmiAsgCrs, AdmiWrkUsr, AdmiWrkCrs:
		return true
	default:
		return false
	}
}

// IsAssignments reports whether k is an assignment zone, where level-1
// folders belong to assignments and are managed by the assignment service.
func IsAssignments(k Kind) bool {
	return k == AdmiAsgUsr || k == AdmiAsgCrs
}

// IsProject reports whether k is a project zone, where rights depend on the
// actor's role inside the owning project.
func IsProject(k Kind) bool {
	return k == AdmiDocPrj || k == AdmiAssPrj
}
