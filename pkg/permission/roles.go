// Package permission decides whether an actor may perform an operation on
// a zone entry. Decisions are pure functions of the actor's role in the
// zone's owning scope, the zone kind's static attributes, entry ownership
// (who published the target subtree) and, for assignment and project
// zones, answers from external collaborator services.
package permission

// Role is the actor's role within the scope that owns a zone instance,
// ordered by privilege.
type Role int

const (
	RoleNone Role = iota
	RoleGuest
	RoleStudent
	RoleNonEditingTeacher
	RoleTeacher
	RoleScopeAdmin
	RoleSystemAdmin
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleStudent:
		return "student"
	case RoleNonEditingTeacher:
		return "non_editing_teacher"
	case RoleTeacher:
		return "teacher"
	case RoleScopeAdmin:
		return "scope_admin"
	case RoleSystemAdmin:
		return "system_admin"
	default:
		return "none"
	}
}

// AtLeast reports whether r carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Actor is the authenticated user a decision is being made for. Role is
// the actor's role in the owning scope of the zone under consideration;
// the caller resolves it through the directory services before asking for
// a decision.
type Actor struct {
	UserID int64
	Role   Role
}

// ProjectRoles is the actor's membership inside one project, as reported
// by the project service. An actor can hold several roles at once.
type ProjectRoles struct {
	Member    bool
	Tutor     bool
	Evaluator bool
}

// Any reports whether the actor has any role in the project.
func (p ProjectRoles) Any() bool {
	return p.Member || p.Tutor || p.Evaluator
}

// Privileged reports whether the actor supervises the project (tutors and
// evaluators are not gated by subtree ownership).
func (p ProjectRoles) Privileged() bool {
	return p.Tutor || p.Evaluator
}

// Operation is a permission-relevant action on a zone entry.
type Operation int

const (
	OpRead Operation = iota
	OpCreate
	OpRename
	OpRemove
	OpHide
	OpPublish
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpRename:
		return "rename"
	case OpRemove:
		return "remove"
	case OpHide:
		return "hide"
	case OpPublish:
		return "publish"
	default:
		return "unknown"
	}
}
