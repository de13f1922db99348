package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/metadata/memory"
	"github.com/campusfiles/zonefs/pkg/permission"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

var (
	teacher = permission.Actor{UserID: 20, Role: permission.RoleTeacher}
	student = permission.Actor{UserID: 10, Role: permission.RoleStudent}
)

// stubAssignments accepts submissions for the assignments it lists as open.
type stubAssignments map[string]bool

func (s stubAssignments) IsAcceptingSubmissions(_ context.Context, _ int64, folder string) (bool, error) {
	return s[folder], nil
}

type fixture struct {
	b      *Browser
	store  *memory.MemoryStore
	layout zonepath.Layout
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := memory.NewMemoryStore()
	perms := permission.NewEngine(store, stubAssignments{"essay": true}, nil)
	layout := zonepath.Layout{BaseDir: t.TempDir()}
	return &fixture{
		b:      New(store, perms, layout, opts),
		store:  store,
		layout: layout,
	}
}

func docZone(a permission.Actor, courseID int64) ZoneContext {
	return ZoneContext{Actor: a, Kind: zone.AdmiDocCrs, ScopeID: courseID}
}

func (f *fixture) mustUpload(t *testing.T, zc ZoneContext, parent zonepath.Path, name, content string) *metadata.FileRecord {
	t.Helper()
	rec, err := f.b.Upload(context.Background(), zc, parent, name, strings.NewReader(content))
	require.NoError(t, err)
	return rec
}

func (f *fixture) mustMkdir(t *testing.T, zc ZoneContext, parent zonepath.Path, name string) zonepath.Path {
	t.Helper()
	rec, err := f.b.CreateFolder(context.Background(), zc, parent, name)
	require.NoError(t, err)
	return rec.Path
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Path)
	}
	return out
}

// ============================================================================
// Upload and listing
// ============================================================================

func TestUploadAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)

	f.mustUpload(t, zc, zonepath.Root, "notes.txt", "hello")
	unit := f.mustMkdir(t, zc, zonepath.Root, "unit1")
	f.mustUpload(t, zc, unit, "c.txt", "x")

	entries, err := f.b.List(ctx, zc, ListOptions{FullTree: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".", "notes.txt", "unit1", "unit1/c.txt"}, names(entries))

	root := entries[0]
	assert.Equal(t, uint(0), root.Level)
	assert.Equal(t, "doc", root.Name)
	assert.True(t, root.Expanded)

	file := entries[1]
	assert.Equal(t, metadata.KindFile, file.Kind)
	assert.Equal(t, int64(5), file.SizeBytes)
	require.NotNil(t, file.Record)
	assert.Equal(t, teacher.UserID, file.Record.PublisherUserID)

	assert.Equal(t, metadata.KindFolder, entries[2].Kind)
	assert.Equal(t, uint(2), entries[3].Level)
}

func TestUploadRejections(t *testing.T) {
	ctx := context.Background()
	zc := docZone(teacher, 1)

	t.Run("DisallowedExtension", func(t *testing.T) {
		f := newFixture(t, Options{Uploads: UploadRules{AllowedExtensions: []string{"pdf"}}})

		_, err := f.b.Upload(ctx, zc, zonepath.Root, "malware.exe", strings.NewReader("x"))
		var rejected *UploadRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "malware.exe", rejected.Name)
	})

	t.Run("OversizedFile", func(t *testing.T) {
		f := newFixture(t, Options{Uploads: UploadRules{MaxSizeBytes: 3}})

		_, err := f.b.Upload(ctx, zc, zonepath.Root, "big.txt", strings.NewReader("toolarge"))
		var rejected *UploadRejectedError
		require.ErrorAs(t, err, &rejected)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.mustUpload(t, zc, zonepath.Root, "a.txt", "x")

		_, err := f.b.Upload(ctx, zc, zonepath.Root, "a.txt", strings.NewReader("y"))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("RejectedUploadLeavesNoTrace", func(t *testing.T) {
		f := newFixture(t, Options{Uploads: UploadRules{MaxSizeBytes: 1}})

		_, err := f.b.Upload(ctx, zc, zonepath.Root, "big.txt", strings.NewReader("xx"))
		require.Error(t, err)

		rootDir, err := f.layout.ZoneRoot(zc.Kind, zc.ScopeID, 0)
		require.NoError(t, err)
		dirEntries, err := os.ReadDir(rootDir)
		require.NoError(t, err)
		assert.Empty(t, dirEntries)
	})
}

func TestMarksUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := ZoneContext{Actor: teacher, Kind: zone.AdmiMrkCrs, ScopeID: 1}

	t.Run("AcceptsASingleTable", func(t *testing.T) {
		doc := "<html><body><table><tr><td>jdoe</td><td>9.5</td></tr></table></body></html>"
		rec, err := f.b.Upload(ctx, zc, zonepath.Root, "grades.html", strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, metadata.KindFile, rec.Kind)
	})

	t.Run("RejectsTwoTables", func(t *testing.T) {
		doc := "<table></table><table></table>"
		_, err := f.b.Upload(ctx, zc, zonepath.Root, "double.html", strings.NewReader(doc))

		var marks *MarksValidationError
		require.ErrorAs(t, err, &marks)
		assert.Equal(t, 2, marks.Tables)
	})

	t.Run("RejectsNoTable", func(t *testing.T) {
		_, err := f.b.Upload(ctx, zc, zonepath.Root, "plain.html", strings.NewReader("<p>hi</p>"))

		var marks *MarksValidationError
		require.ErrorAs(t, err, &marks)
		assert.Equal(t, 0, marks.Tables)
	})

	t.Run("RejectsLinkNames", func(t *testing.T) {
		_, err := f.b.Upload(ctx, zc, zonepath.Root, "report.url", strings.NewReader("<p>no table here</p>"))
		require.ErrorIs(t, err, ErrLinkInMarksZone)

		_, err = f.store.GetFileRecord(ctx, zc.Instance(), "report.url")
		assert.Error(t, err)
		entries, err := os.ReadDir(mustRoot(t, f, zc))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotEqual(t, "report.url", e.Name())
		}
	})

	t.Run("RejectsCreateLink", func(t *testing.T) {
		_, err := f.b.CreateLink(ctx, zc, zonepath.Root, "Rubric", "https://example.org/rubric")
		assert.ErrorIs(t, err, ErrLinkInMarksZone)
	})
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)

	f.mustMkdir(t, zc, zonepath.Root, "unit1")

	_, err := f.b.CreateFolder(ctx, zc, zonepath.Root, "unit1")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)

	rec, err := f.b.CreateLink(ctx, zc, zonepath.Root, "Course site", "https://example.org/course")
	require.NoError(t, err)
	assert.Equal(t, metadata.KindLink, rec.Kind)
	assert.Equal(t, zonepath.Path("Course site.url"), rec.Path)

	_, err = f.b.CreateLink(ctx, zc, zonepath.Root, "bad", "ftp://example.org/file")
	assert.Error(t, err)
}

func TestCreateInsideAFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	f.mustUpload(t, zc, zonepath.Root, "notes.txt", "hi")

	parent := zonepath.Path("notes.txt")

	_, err := f.b.CreateFolder(ctx, zc, parent, "sub")
	assert.ErrorIs(t, err, ErrNotAFolder)

	_, err = f.b.Upload(ctx, zc, parent, "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotAFolder)

	_, err = f.b.CreateLink(ctx, zc, parent, "Site", "https://example.org/site")
	assert.ErrorIs(t, err, ErrNotAFolder)
}

// ============================================================================
// Quotas and depth
// ============================================================================

func TestQuotaEnforcement(t *testing.T) {
	ctx := context.Background()
	policy := quota.Policy{MaxFiles: 2, MaxFolders: 10, MaxBytes: 10, MaxLevels: 5}
	f := newFixture(t, Options{Policies: map[zone.Kind]quota.Policy{zone.AdmiDocCrs: policy}})
	zc := docZone(teacher, 1)

	t.Run("ByteLimit", func(t *testing.T) {
		_, err := f.b.Upload(ctx, zc, zonepath.Root, "big.txt", strings.NewReader("0123456789A"))

		var exceeded *quota.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, quota.DimBytes, exceeded.Dimension)
	})

	t.Run("FileCountLimit", func(t *testing.T) {
		f.mustUpload(t, zc, zonepath.Root, "a.txt", "x")
		f.mustUpload(t, zc, zonepath.Root, "b.txt", "x")

		_, err := f.b.Upload(ctx, zc, zonepath.Root, "c.txt", strings.NewReader("x"))
		var exceeded *quota.ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, quota.DimFiles, exceeded.Dimension)
	})
}

func TestDepthLimit(t *testing.T) {
	ctx := context.Background()
	policy := quota.Policy{MaxFiles: 100, MaxFolders: 100, MaxBytes: 1 << 20, MaxLevels: 3}
	f := newFixture(t, Options{Policies: map[zone.Kind]quota.Policy{zone.AdmiDocCrs: policy}})
	zc := docZone(teacher, 1)

	p := zonepath.Root
	for _, name := range []string{"a", "b", "c"} {
		p = f.mustMkdir(t, zc, p, name)
	}

	var qe *quota.ExceededError
	_, err := f.b.CreateFolder(ctx, zc, p, "d")
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, quota.DimLevels, qe.Dimension)

	_, err = f.b.Upload(ctx, zc, p, "too-deep.txt", strings.NewReader("x"))
	qe = nil
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, quota.DimLevels, qe.Dimension)

	// The ceiling binds admins too.
	admin := permission.Actor{UserID: 30, Role: permission.RoleScopeAdmin}
	_, err = f.b.CreateFolder(ctx, docZone(admin, 1), p, "d")
	assert.ErrorAs(t, err, &qe)
}

// ============================================================================
// Clipboard and paste
// ============================================================================

func seedUnit(t *testing.T, f *fixture, zc ZoneContext) zonepath.Path {
	t.Helper()
	unit := f.mustMkdir(t, zc, zonepath.Root, "unit1")
	f.mustUpload(t, zc, unit, "a.txt", "aaa")
	f.mustUpload(t, zc, unit, "b.txt", "bb")
	extra := f.mustMkdir(t, zc, unit, "extra")
	f.mustUpload(t, zc, extra, "c.txt", "c")
	return unit
}

func TestPaste(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	src := docZone(teacher, 1)
	dst := docZone(teacher, 2)
	unit := seedUnit(t, f, src)

	require.NoError(t, f.b.CopyToClipboard(ctx, src, unit))

	res, err := f.b.Paste(ctx, dst, zonepath.Root)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files)
	assert.Equal(t, 2, res.Folders)
	assert.Equal(t, 0, res.Links)
	assert.Empty(t, res.Skipped)
	assert.NotEqual(t, metadata.FileID{}, res.FirstFileID)

	// The copies carry fresh records owned by the pasting user.
	rec, err := f.store.GetFileRecord(ctx, dst.Instance(), "unit1/extra/c.txt")
	require.NoError(t, err)
	assert.Equal(t, teacher.UserID, rec.PublisherUserID)

	data, err := os.ReadFile(zonepath.Resolve(mustRoot(t, f, dst), "unit1/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))

	// The clipboard survives and can be pasted again elsewhere.
	cb, err := f.b.ClipboardOf(ctx, teacher.UserID)
	require.NoError(t, err)
	assert.NotNil(t, cb)
}

func TestPasteCountsLinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	src := docZone(teacher, 1)
	dst := docZone(teacher, 2)

	folder := f.mustMkdir(t, src, zonepath.Root, "links")
	_, err := f.b.CreateLink(ctx, src, folder, "Course site", "https://example.org/course")
	require.NoError(t, err)

	require.NoError(t, f.b.CopyToClipboard(ctx, src, folder))
	res, err := f.b.Paste(ctx, dst, zonepath.Root)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Files)
	assert.Equal(t, 1, res.Links)
	assert.NotEqual(t, metadata.FileID{}, res.FirstFileID)

	rec, err := f.store.GetFileRecordByID(ctx, res.FirstFileID)
	require.NoError(t, err)
	assert.Equal(t, metadata.KindLink, rec.Kind)
}

func mustRoot(t *testing.T, f *fixture, zc ZoneContext) string {
	t.Helper()
	dir, err := f.layout.ZoneRoot(zc.Kind, zc.ScopeID, zc.SecondaryScopeID)
	require.NoError(t, err)
	return dir
}

func TestCheckPaste(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	unit := seedUnit(t, f, zc)

	t.Run("EmptyClipboard", func(t *testing.T) {
		assert.ErrorIs(t, f.b.CheckPaste(ctx, zc, zonepath.Root), ErrNoClipboard)
	})

	require.NoError(t, f.b.CopyToClipboard(ctx, zc, unit))

	t.Run("IntoItself", func(t *testing.T) {
		err := f.b.CheckPaste(ctx, zc, zonepath.Path("unit1/extra"))
		assert.ErrorIs(t, err, ErrPasteIntoItself)
	})

	t.Run("BackIntoItsOwnParent", func(t *testing.T) {
		err := f.b.CheckPaste(ctx, zc, zonepath.Root)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("OntoAFile", func(t *testing.T) {
		err := f.b.CheckPaste(ctx, zc, zonepath.Path("unit1/a.txt"))
		assert.ErrorIs(t, err, ErrNotAFolder)
	})

	t.Run("NameTakenInDestination", func(t *testing.T) {
		other := docZone(teacher, 2)
		f.mustMkdir(t, other, zonepath.Root, "unit1")

		err := f.b.CheckPaste(ctx, other, zonepath.Root)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("LinkIntoMarksZone", func(t *testing.T) {
		link, err := f.b.CreateLink(ctx, zc, zonepath.Root, "Course site", "https://example.org/course")
		require.NoError(t, err)
		require.NoError(t, f.b.CopyToClipboard(ctx, zc, link.Path))

		marks := ZoneContext{Actor: teacher, Kind: zone.AdmiMrkCrs, ScopeID: 1}
		assert.ErrorIs(t, f.b.CheckPaste(ctx, marks, zonepath.Root), ErrLinkInMarksZone)
	})
}

func TestPasteIntoMarksZoneSkipsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	src := docZone(teacher, 1)
	marks := ZoneContext{Actor: teacher, Kind: zone.AdmiMrkCrs, ScopeID: 1}

	unit := f.mustMkdir(t, src, zonepath.Root, "unit1")
	f.mustUpload(t, src, unit, "grades.html", "<table><tr><td>ok</td></tr></table>")
	f.mustUpload(t, src, unit, "readme.txt", "not marks")

	require.NoError(t, f.b.CopyToClipboard(ctx, src, unit))

	res, err := f.b.Paste(ctx, marks, zonepath.Root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Folders)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, zonepath.Path("unit1/readme.txt"), res.Skipped[0].Path)
}

func TestPasteStopsAtQuota(t *testing.T) {
	ctx := context.Background()
	policy := quota.Policy{MaxFiles: 2, MaxFolders: 10, MaxBytes: 1 << 20, MaxLevels: 5}
	f := newFixture(t, Options{Policies: map[zone.Kind]quota.Policy{zone.AdmiDocCrs: policy}})
	src := docZone(teacher, 1)
	dst := docZone(teacher, 2)

	// The policy binds the kind in both courses, so seed the source within
	// the limits too.
	unit := f.mustMkdir(t, src, zonepath.Root, "unit1")
	f.mustUpload(t, src, unit, "a.txt", "a")
	f.mustUpload(t, src, unit, "b.txt", "b")

	f.mustUpload(t, dst, zonepath.Root, "existing.txt", "x")
	require.NoError(t, f.b.CopyToClipboard(ctx, src, unit))

	res, err := f.b.Paste(ctx, dst, zonepath.Root)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)

	// The paste kept what it placed before hitting the limit.
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Folders)
	assert.FileExists(t, filepath.Join(mustRoot(t, f, dst), "unit1", "a.txt"))
	assert.NoFileExists(t, filepath.Join(mustRoot(t, f, dst), "unit1", "b.txt"))
}

// ============================================================================
// Rename and removal
// ============================================================================

func TestRenameCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	unit := seedUnit(t, f, zc)

	require.NoError(t, f.b.ExpandFolder(ctx, zc, zonepath.Path("unit1/extra")))
	require.NoError(t, f.b.CopyToClipboard(ctx, zc, zonepath.Path("unit1/a.txt")))

	newPath, err := f.b.Rename(ctx, zc, unit, "module1")
	require.NoError(t, err)
	assert.Equal(t, zonepath.Path("module1"), newPath)

	assert.DirExists(t, filepath.Join(mustRoot(t, f, zc), "module1"))
	assert.NoDirExists(t, filepath.Join(mustRoot(t, f, zc), "unit1"))

	// Records keep their ids under the new prefix.
	rec, err := f.store.GetFileRecord(ctx, zc.Instance(), "module1/extra/c.txt")
	require.NoError(t, err)
	assert.Equal(t, teacher.UserID, rec.PublisherUserID)
	_, err = f.store.GetFileRecord(ctx, zc.Instance(), "unit1/extra/c.txt")
	assert.True(t, metadata.IsNotFound(err))

	// Expanded state follows the rename.
	ok, err := f.store.IsExpanded(ctx, teacher.UserID, zc.Instance(), "module1/extra")
	require.NoError(t, err)
	assert.True(t, ok)

	// Clipboards into the renamed subtree are dropped, not rewritten.
	cb, err := f.b.ClipboardOf(ctx, teacher.UserID)
	require.NoError(t, err)
	assert.Nil(t, cb)

	t.Run("TargetNameTaken", func(t *testing.T) {
		f.mustMkdir(t, zc, zonepath.Root, "other")
		_, err := f.b.Rename(ctx, zc, zonepath.Path("other"), "module1")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestRemoveFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	unit := seedUnit(t, f, zc)

	t.Run("RefusesFolders", func(t *testing.T) {
		assert.ErrorIs(t, f.b.RemoveFile(ctx, zc, unit), ErrIsAFolder)
	})

	t.Run("RemovesFileAndRecord", func(t *testing.T) {
		require.NoError(t, f.b.RemoveFile(ctx, zc, zonepath.Path("unit1/a.txt")))

		assert.NoFileExists(t, filepath.Join(mustRoot(t, f, zc), "unit1", "a.txt"))
		_, err := f.store.GetFileRecord(ctx, zc.Instance(), "unit1/a.txt")
		assert.True(t, metadata.IsNotFound(err))
	})
}

func TestTwoStepFolderRemoval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	unit := seedUnit(t, f, zc)
	require.NoError(t, f.b.ExpandFolder(ctx, zc, unit))

	// Step one refuses non-empty folders with nothing removed.
	err := f.b.RemoveEmptyFolder(ctx, zc, unit)
	assert.ErrorIs(t, err, ErrFolderNotEmpty)
	assert.DirExists(t, filepath.Join(mustRoot(t, f, zc), "unit1"))

	// Step two removes the subtree and its bookkeeping.
	require.NoError(t, f.b.RemoveSubtree(ctx, zc, unit))
	assert.NoDirExists(t, filepath.Join(mustRoot(t, f, zc), "unit1"))

	_, err = f.store.GetFileRecord(ctx, zc.Instance(), "unit1/b.txt")
	assert.True(t, metadata.IsNotFound(err))
	ok, err := f.store.IsExpanded(ctx, teacher.UserID, zc.Instance(), unit)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("EmptyFolderGoesInOneStep", func(t *testing.T) {
		empty := f.mustMkdir(t, zc, zonepath.Root, "empty")
		require.NoError(t, f.b.RemoveEmptyFolder(ctx, zc, empty))
		assert.NoDirExists(t, filepath.Join(mustRoot(t, f, zc), "empty"))
	})
}

// ============================================================================
// Hiding
// ============================================================================

func TestHiddenFiltering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	admin := docZone(teacher, 1)

	f.mustUpload(t, admin, zonepath.Root, "visible.txt", "x")
	secret := f.mustMkdir(t, admin, zonepath.Root, "secret")
	f.mustUpload(t, admin, secret, "inner.txt", "x")

	require.NoError(t, f.b.SetHidden(ctx, admin, secret, true))

	t.Run("StudentsOnlySeeVisibleEntries", func(t *testing.T) {
		view := ZoneContext{Actor: student, Kind: zone.ShowDocCrs, ScopeID: 1}
		entries, err := f.b.List(ctx, view, ListOptions{FullTree: true})
		require.NoError(t, err)
		assert.Equal(t, []string{".", "visible.txt"}, names(entries))
	})

	t.Run("TeachersSeeCompositeVisibility", func(t *testing.T) {
		entries, err := f.b.List(ctx, admin, ListOptions{FullTree: true})
		require.NoError(t, err)
		require.Equal(t, []string{".", "secret", "secret/inner.txt", "visible.txt"}, names(entries))
		assert.Equal(t, Hidden, entries[1].Visibility)
		assert.Equal(t, AncestorHidden, entries[2].Visibility)
		assert.Equal(t, Visible, entries[3].Visibility)
	})

	t.Run("UnhidingRestoresTheEntry", func(t *testing.T) {
		require.NoError(t, f.b.SetHidden(ctx, admin, secret, false))

		view := ZoneContext{Actor: student, Kind: zone.ShowDocCrs, ScopeID: 1}
		entries, err := f.b.List(ctx, view, ListOptions{FullTree: true})
		require.NoError(t, err)
		assert.Equal(t, []string{".", "secret", "secret/inner.txt", "visible.txt"}, names(entries))
	})
}

// ============================================================================
// Expansion state
// ============================================================================

func TestExpandCollapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	seedUnit(t, f, zc)

	t.Run("RefusesFiles", func(t *testing.T) {
		err := f.b.ExpandFolder(ctx, zc, zonepath.Path("unit1/a.txt"))
		assert.ErrorIs(t, err, ErrNotAFolder)
	})

	t.Run("ExpandingANestedFolderOpensItsAncestors", func(t *testing.T) {
		require.NoError(t, f.b.ExpandFolder(ctx, zc, zonepath.Path("unit1/extra")))

		entries, err := f.b.List(ctx, zc, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{".", "unit1", "unit1/a.txt", "unit1/b.txt", "unit1/extra", "unit1/extra/c.txt"},
			names(entries))
	})

	t.Run("CollapsingKeepsChildMarks", func(t *testing.T) {
		require.NoError(t, f.b.CollapseFolder(ctx, zc, zonepath.Path("unit1")))

		entries, err := f.b.List(ctx, zc, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{".", "unit1"}, names(entries))
		assert.False(t, entries[1].Expanded)

		// Reopening the folder brings the still-marked child back expanded.
		require.NoError(t, f.b.ExpandFolder(ctx, zc, zonepath.Path("unit1")))
		entries, err = f.b.List(ctx, zc, ListOptions{})
		require.NoError(t, err)
		assert.Contains(t, names(entries), "unit1/extra/c.txt")
	})
}

// ============================================================================
// Publication and views
// ============================================================================

func TestPublishAndViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	f.mustUpload(t, zc, zonepath.Root, "open.pdf", "pdf")
	f.mustUpload(t, zc, zonepath.Root, "closed.pdf", "pdf")

	t.Run("InvalidLicense", func(t *testing.T) {
		err := f.b.Publish(ctx, zc, zonepath.Path("open.pdf"), true, metadata.License(99))
		assert.Error(t, err)
	})

	t.Run("OnlyThePublisherOrATeacherMayPublish", func(t *testing.T) {
		view := ZoneContext{Actor: student, Kind: zone.ShowDocCrs, ScopeID: 1}
		err := f.b.Publish(ctx, view, zonepath.Path("open.pdf"), true, metadata.LicenseCCBY)
		assert.True(t, permission.IsDenied(err))
	})

	require.NoError(t, f.b.Publish(ctx, zc, zonepath.Path("open.pdf"), true, metadata.LicenseCCBY))

	t.Run("PublicOnlyListing", func(t *testing.T) {
		entries, err := f.b.List(ctx, zc, ListOptions{PublicOnly: true})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, zonepath.Path("open.pdf"), entries[0].Path)
		assert.Equal(t, metadata.LicenseCCBY, entries[0].Record.License)
	})

	t.Run("ViewsAggregatePerViewer", func(t *testing.T) {
		view := ZoneContext{Actor: student, Kind: zone.ShowDocCrs, ScopeID: 1}
		_, err := f.b.RecordView(ctx, view, zonepath.Path("open.pdf"))
		require.NoError(t, err)
		_, err = f.b.RecordView(ctx, view, zonepath.Path("open.pdf"))
		require.NoError(t, err)
		stats, err := f.b.RecordView(ctx, zc, zonepath.Path("open.pdf"))
		require.NoError(t, err)

		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.Viewers)

		got, err := f.b.Views(ctx, zc, zonepath.Path("open.pdf"))
		require.NoError(t, err)
		assert.Equal(t, stats, got)
	})
}

func TestPublicLink(t *testing.T) {
	ctx := context.Background()
	linkDir := t.TempDir()
	f := newFixture(t, Options{TempLinkDir: linkDir})
	zc := docZone(teacher, 1)
	f.mustUpload(t, zc, zonepath.Root, "doc.pdf", "pdf")

	link, err := f.b.PublicLink(ctx, zc, zonepath.Path("doc.pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(link, "/doc.pdf"))

	data, err := os.ReadFile(filepath.Join(linkDir, filepath.FromSlash(link)))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	t.Run("FoldersHaveNoLinks", func(t *testing.T) {
		folder := f.mustMkdir(t, zc, zonepath.Root, "dir")
		_, err := f.b.PublicLink(ctx, zc, folder)
		assert.ErrorIs(t, err, ErrIsAFolder)
	})
}

// ============================================================================
// Maintenance
// ============================================================================

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	rootDir := mustRoot(t, f, zc)

	// Disk content that never went through the browser.
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "unit1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "unit1", "b.txt"), []byte("y"), 0o644))

	// A row whose disk entry is gone.
	_, err := f.store.UpsertFileRecord(ctx, zc.Instance(), "ghost.txt", metadata.KindFile, 7, 1, time.Now())
	require.NoError(t, err)

	stats, err := f.b.Reconcile(ctx, zc.Kind, zc.ScopeID, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Entries)
	assert.Equal(t, 4, stats.Healed)
	assert.Equal(t, 1, stats.Pruned)

	rec, err := f.store.GetFileRecord(ctx, zc.Instance(), "unit1/b.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.PublisherUserID)
	_, err = f.store.GetFileRecord(ctx, zc.Instance(), "ghost.txt")
	assert.True(t, metadata.IsNotFound(err))

	t.Run("SecondPassIsClean", func(t *testing.T) {
		stats, err := f.b.Reconcile(ctx, zc.Kind, zc.ScopeID, 0)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Entries)
		assert.Equal(t, 0, stats.Healed)
		assert.Equal(t, 0, stats.Pruned)
	})
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	linkDir := t.TempDir()
	f := newFixture(t, Options{TempLinkDir: linkDir, TempLinkTTL: time.Millisecond})
	zc := docZone(teacher, 1)
	f.mustUpload(t, zc, zonepath.Root, "doc.pdf", "pdf")

	require.NoError(t, f.store.SetClipboard(ctx, metadata.Clipboard{
		OwnerUserID: 1, Source: zc.Instance(), Path: "doc.pdf",
		CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, f.store.InsertExpanded(ctx, metadata.ExpandedFolder{
		UserID: 1, Instance: zc.Instance(), Path: "stale",
		LastClickedAt: time.Now().Add(-30 * 24 * time.Hour),
	}))
	_, err := f.b.PublicLink(ctx, zc, zonepath.Path("doc.pdf"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	stats, err := f.b.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Clipboards)
	assert.Equal(t, 1, stats.Expanded)
	assert.Equal(t, 1, stats.TempLinks)
}

// ============================================================================
// Assignment folder cascades
// ============================================================================

func TestAssignmentFolderCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	const courseID = 9

	// Two students with existing assignment trees.
	for _, userID := range []int64{5, 6} {
		_, err := f.layout.ZoneRoot(zone.AdmiAsgUsr, courseID, userID)
		require.NoError(t, err)
	}

	created, err := f.b.CreateAssignmentFolders(ctx, courseID, "essay")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// A student submits into their tree while the assignment is open.
	sub := ZoneContext{
		Actor: student, Kind: zone.AdmiAsgUsr,
		ScopeID: courseID, SecondaryScopeID: student.UserID,
	}
	_, err = f.layout.ZoneRoot(zone.AdmiAsgUsr, courseID, student.UserID)
	require.NoError(t, err)
	created2, err := f.b.CreateAssignmentFolders(ctx, courseID, "essay")
	require.NoError(t, err)
	assert.Equal(t, 1, created2)
	f.mustUpload(t, sub, zonepath.Path("essay"), "draft.txt", "my answer")

	t.Run("RenameTouchesEveryTree", func(t *testing.T) {
		renamed, err := f.b.RenameAssignmentFolders(ctx, courseID, "essay", "final essay")
		require.NoError(t, err)
		assert.Equal(t, 3, renamed)

		inst := metadata.Instance{Kind: zone.AdmiAsgUsr, ScopeID: courseID, SecondaryScopeID: student.UserID}
		_, err = f.store.GetFileRecord(ctx, inst, "final essay/draft.txt")
		assert.NoError(t, err)
	})

	t.Run("RemoveTouchesEveryTree", func(t *testing.T) {
		removed, err := f.b.RemoveAssignmentFolders(ctx, courseID, "final essay")
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		inst := metadata.Instance{Kind: zone.AdmiAsgUsr, ScopeID: courseID, SecondaryScopeID: student.UserID}
		_, err = f.store.GetFileRecord(ctx, inst, "final essay/draft.txt")
		assert.True(t, metadata.IsNotFound(err))
	})

	t.Run("SingleComponentNamesOnly", func(t *testing.T) {
		_, err := f.b.CreateAssignmentFolders(ctx, courseID, "a/b")
		assert.Error(t, err)
	})
}

func TestSelfHealingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	zc := docZone(teacher, 1)
	rootDir := mustRoot(t, f, zc)

	// A file placed on disk outside the browser gets a record on first list.
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "legacy.txt"), []byte("old"), 0o644))

	entries, err := f.b.List(ctx, zc, ListOptions{FullTree: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[1].Record)
	assert.Equal(t, int64(0), entries[1].Record.PublisherUserID)

	rec, err := f.store.GetFileRecord(ctx, zc.Instance(), "legacy.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.SizeBytes)
}
