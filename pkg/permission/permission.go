package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// DeniedError reports a refused operation and the rule that refused it.
type DeniedError struct {
	Op     Operation
	Zone   zone.Kind
	Path   zonepath.Path
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied in %s at %q: %s", e.Op, e.Zone, e.Path, e.Reason)
}

// IsDenied reports whether err is a permission denial (as opposed to a
// collaborator or store failure while deciding).
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}

// SubtreeOwnership answers whether one user published an entire subtree.
// Satisfied by metadata.Store.
type SubtreeOwnership interface {
	SubtreePublisher(ctx context.Context, inst metadata.Instance, path zonepath.Path) (userID int64, sole bool, err error)
}

// AssignmentGate answers whether an assignment still accepts submissions.
// Level-1 folders in assignment zones are named after their assignment.
type AssignmentGate interface {
	IsAcceptingSubmissions(ctx context.Context, courseID int64, folderName string) (bool, error)
}

// ProjectDirectory resolves an actor's roles inside one project.
type ProjectDirectory interface {
	MyRolesInProject(ctx context.Context, userID, projectID int64) (ProjectRoles, error)
}

// Engine evaluates access rules. All methods return nil when the operation
// is allowed, a *DeniedError when a rule refuses it, and any other error
// when a collaborator lookup failed and no decision could be made.
type Engine struct {
	ownership   SubtreeOwnership
	assignments AssignmentGate
	projects    ProjectDirectory
}

// NewEngine builds a permission engine. assignments and projects may be nil
// when the deployment has no such collaborators; the corresponding zones
// then deny everything below scope-admin level.
func NewEngine(ownership SubtreeOwnership, assignments AssignmentGate, projects ProjectDirectory) *Engine {
	return &Engine{ownership: ownership, assignments: assignments, projects: projects}
}

func deny(op Operation, k zone.Kind, p zonepath.Path, reason string) error {
	return &DeniedError{Op: op, Zone: k, Path: p, Reason: reason}
}

// isAdmin reports whether the actor bypasses ownership gates. Scope admins
// and system admins administer every zone of their scope; they are still
// bound by structural rules (root immutability, assignment folders).
func isAdmin(a Actor) bool {
	return a.Role.AtLeast(RoleScopeAdmin)
}

// ============================================================================
// Read access
// ============================================================================

// CheckRead decides whether the actor may browse the zone instance at all.
// Per-entry hidden filtering is the browser's job; this gates the zone.
func (e *Engine) CheckRead(ctx context.Context, a Actor, k zone.Kind, inst metadata.Instance) error {
	if !k.Valid() {
		return deny(OpRead, k, zonepath.Root, "unknown zone kind")
	}
	if isAdmin(a) {
		return nil
	}

	switch {
	case k == zone.AdmiBrfUsr:
		if a.UserID != inst.ScopeID {
			return deny(OpRead, k, zonepath.Root, "briefcase belongs to another user")
		}
		return nil

	case zone.IsProject(k):
		roles, err := e.projectRoles(ctx, a, inst)
		if err != nil {
			return err
		}
		if !roles.Any() {
			return deny(OpRead, k, zonepath.Root, "not a member of the project")
		}
		return nil

	case k == zone.AdmiWrkUsr || k == zone.AdmiAsgUsr:
		if a.UserID != inst.SecondaryScopeID {
			return deny(OpRead, k, zonepath.Root, "tree belongs to another student")
		}
		return e.requireRole(OpRead, a, k, RoleStudent)

	case k == zone.AdmiWrkCrs || k == zone.AdmiAsgCrs:
		return e.requireRole(OpRead, a, k, RoleTeacher)

	case k == zone.AdmiTchCrs || k == zone.AdmiTchGrp:
		return e.requireRole(OpRead, a, k, RoleNonEditingTeacher)

	case k == zone.ShowDocIns || k == zone.ShowDocCtr || k == zone.ShowDocDeg:
		// Institutional document listings are open to any authenticated user.
		return e.requireRole(OpRead, a, k, RoleGuest)

	case zone.IsEditable(k) && zone.IsHideCapable(k):
		// Admin views over documents and marks.
		return e.requireRole(OpRead, a, k, RoleTeacher)

	default:
		return e.requireRole(OpRead, a, k, RoleStudent)
	}
}

// ============================================================================
// Mutations
// ============================================================================

// CheckCreate decides whether the actor may create an entry inside the
// folder at parent. Depth is a quota dimension, not a permission, and is
// enforced by the zone's quota check.
func (e *Engine) CheckCreate(ctx context.Context, a Actor, k zone.Kind, inst metadata.Instance,
	parent zonepath.Path) error {

	if err := e.checkWritableZone(OpCreate, a, k); err != nil {
		return err
	}
	if zone.IsAssignments(k) {
		if parent.IsRoot() {
			return deny(OpCreate, k, parent, "assignment folders are managed by the assignment service")
		}
		if err := e.checkAssignmentOpen(ctx, OpCreate, a, k, inst, parent); err != nil {
			return err
		}
	}
	return e.checkZoneMutation(ctx, OpCreate, a, k, inst, parent, true)
}

// CheckRename decides whether the actor may rename the entry at path.
func (e *Engine) CheckRename(ctx context.Context, a Actor, k zone.Kind, inst metadata.Instance,
	path zonepath.Path) error {
	return e.checkStructuralMutation(ctx, OpRename, a, k, inst, path)
}

// CheckRemove decides whether the actor may remove the entry at path
// (single file or whole subtree alike).
func (e *Engine) CheckRemove(ctx context.Context, a Actor, k zone.Kind, inst metadata.Instance,
	path zonepath.Path) error {
	return e.checkStructuralMutation(ctx, OpRemove, a, k, inst, path)
}

// checkStructuralMutation is the shared rename/remove rule set: writable
// zone, not the root, not an assignment's level-1 folder, then the per-kind
// ownership rules.
func (e *Engine) checkStructuralMutation(ctx context.Context, op Operation, a Actor, k zone.Kind,
	inst metadata.Instance, path zonepath.Path) error {

	if err := e.checkWritableZone(op, a, k); err != nil {
		return err
	}
	if path.IsRoot() {
		return deny(op, k, path, "zone root is immutable")
	}
	if zone.IsAssignments(k) {
		if path.Level() == 1 {
			return deny(op, k, path, "assignment folders are managed by the assignment service")
		}
		if err := e.checkAssignmentOpen(ctx, op, a, k, inst, path); err != nil {
			return err
		}
	}
	return e.checkZoneMutation(ctx, op, a, k, inst, path, false)
}

// CheckToggleHidden decides whether the actor may hide or unhide entries.
func (e *Engine) CheckToggleHidden(ctx context.Context, a Actor, k zone.Kind, path zonepath.Path) error {
	if !zone.IsHideCapable(k) {
		return deny(OpHide, k, path, "zone entries cannot be hidden")
	}
	if !zone.IsEditable(k) {
		return deny(OpHide, k, path, "zone is read-only")
	}
	if !a.Role.AtLeast(RoleTeacher) {
		return deny(OpHide, k, path, "requires an editing teacher")
	}
	return nil
}

// CheckPublish decides whether the actor may publish the record as an open
// educational resource or change its license. The record's publisher may
// always manage its publication; otherwise an editing teacher is required.
func (e *Engine) CheckPublish(ctx context.Context, a Actor, k zone.Kind, rec *metadata.FileRecord) error {
	if !zone.IsEditable(k) {
		return deny(OpPublish, k, rec.Path, "zone is read-only")
	}
	if rec.PublisherUserID != 0 && rec.PublisherUserID == a.UserID {
		return nil
	}
	if !a.Role.AtLeast(RoleTeacher) {
		return deny(OpPublish, k, rec.Path, "only the publisher or an editing teacher may change publication")
	}
	return nil
}

// ============================================================================
// Per-kind rules
// ============================================================================

func (e *Engine) checkWritableZone(op Operation, a Actor, k zone.Kind) error {
	if !k.Valid() {
		return deny(op, k, zonepath.Root, "unknown zone kind")
	}
	if !zone.IsEditable(k) {
		return deny(op, k, zonepath.Root, "zone is read-only")
	}
	return nil
}

// checkZoneMutation applies the per-kind write rules at path. creating is
// true for new entries: ownership gates do not apply to a path that does
// not exist yet, only role gates do.
func (e *Engine) checkZoneMutation(ctx context.Context, op Operation, a Actor, k zone.Kind,
	inst metadata.Instance, path zonepath.Path, creating bool) error {

	if isAdmin(a) {
		return nil
	}

	switch {
	case k == zone.AdmiBrfUsr:
		if a.UserID != inst.ScopeID {
			return deny(op, k, path, "briefcase belongs to another user")
		}
		return nil

	case zone.IsProject(k):
		return e.checkProjectMutation(ctx, op, a, k, inst, path, creating)

	case k == zone.AdmiWrkUsr || k == zone.AdmiAsgUsr:
		if a.UserID != inst.SecondaryScopeID {
			return deny(op, k, path, "tree belongs to another student")
		}
		return e.requireRole(op, a, k, RoleStudent)

	case k == zone.AdmiWrkCrs || k == zone.AdmiAsgCrs:
		return e.requireRole(op, a, k, RoleTeacher)

	case k == zone.AdmiShrCrs || k == zone.AdmiShrGrp || k == zone.AdmiShrDeg ||
		k == zone.AdmiShrCtr || k == zone.AdmiShrIns:
		if a.Role.AtLeast(RoleTeacher) {
			return nil
		}
		if err := e.requireRole(op, a, k, RoleStudent); err != nil {
			return err
		}
		if creating {
			return nil
		}
		return e.requireSolePublisher(ctx, op, a, k, inst, path)

	case k == zone.AdmiTchCrs || k == zone.AdmiTchGrp:
		if a.Role.AtLeast(RoleTeacher) {
			return nil
		}
		if err := e.requireRole(op, a, k, RoleNonEditingTeacher); err != nil {
			return err
		}
		if creating {
			return nil
		}
		return e.requireSolePublisher(ctx, op, a, k, inst, path)

	default:
		// Documents and marks admin zones.
		return e.requireRole(op, a, k, RoleTeacher)
	}
}

func (e *Engine) checkProjectMutation(ctx context.Context, op Operation, a Actor, k zone.Kind,
	inst metadata.Instance, path zonepath.Path, creating bool) error {

	roles, err := e.projectRoles(ctx, a, inst)
	if err != nil {
		return err
	}
	if roles.Privileged() {
		return nil
	}
	if k == zone.AdmiAssPrj {
		return deny(op, k, path, "assessment zone is writable by tutors and evaluators only")
	}
	if !roles.Member {
		return deny(op, k, path, "not a member of the project")
	}
	if creating {
		return nil
	}
	return e.requireSolePublisher(ctx, op, a, k, inst, path)
}

// ============================================================================
// Helpers
// ============================================================================

func (e *Engine) requireRole(op Operation, a Actor, k zone.Kind, min Role) error {
	if !a.Role.AtLeast(min) {
		return deny(op, k, zonepath.Root, fmt.Sprintf("requires role %s or above", min))
	}
	return nil
}

// requireSolePublisher allows a non-privileged actor to manage only
// subtrees they alone published. A subtree with unknown or mixed publishers
// stays under teacher control.
func (e *Engine) requireSolePublisher(ctx context.Context, op Operation, a Actor, k zone.Kind,
	inst metadata.Instance, path zonepath.Path) error {

	userID, sole, err := e.ownership.SubtreePublisher(ctx, inst, path)
	if err != nil {
		return fmt.Errorf("failed to resolve subtree publisher: %w", err)
	}
	if !sole || userID != a.UserID {
		return deny(op, k, path, "entry was not published by the requesting user")
	}
	return nil
}

// checkAssignmentOpen gates student writes inside an assignment's folder on
// the assignment still accepting submissions. Teachers are exempt. The
// assignment is identified by the level-1 folder name on path.
func (e *Engine) checkAssignmentOpen(ctx context.Context, op Operation, a Actor, k zone.Kind,
	inst metadata.Instance, path zonepath.Path) error {

	if a.Role.AtLeast(RoleTeacher) {
		return nil
	}
	if e.assignments == nil {
		return deny(op, k, path, "no assignment service configured")
	}
	folder := path.TopFolder()
	open, err := e.assignments.IsAcceptingSubmissions(ctx, inst.ScopeID, folder)
	if err != nil {
		return fmt.Errorf("failed to query assignment %q: %w", folder, err)
	}
	if !open {
		return deny(op, k, path, "assignment no longer accepts submissions")
	}
	return nil
}

func (e *Engine) projectRoles(ctx context.Context, a Actor, inst metadata.Instance) (ProjectRoles, error) {
	if e.projects == nil {
		return ProjectRoles{}, nil
	}
	roles, err := e.projects.MyRolesInProject(ctx, a.UserID, inst.ScopeID)
	if err != nil {
		return ProjectRoles{}, fmt.Errorf("failed to resolve project roles: %w", err)
	}
	return roles, nil
}
