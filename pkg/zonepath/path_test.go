package zonepath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusfiles/zonefs/pkg/zone"
)

// ============================================================================
// Name validation
// ============================================================================

func TestValidateName(t *testing.T) {
	t.Run("AcceptsOrdinaryNames", func(t *testing.T) {
		for _, name := range []string{"notes.txt", "Unit 1", "informe-final.pdf", "..."} {
			assert.NoError(t, ValidateName(name), name)
		}
	})

	t.Run("RejectsTraversalAndSeparators", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b", `a\b`, "nul\x00byte"} {
			err := ValidateName(name)
			require.Error(t, err, "name %q", name)

			var invalid *InvalidNameError
			assert.True(t, errors.As(err, &invalid))
		}
	})
}

// ============================================================================
// Join and Parse
// ============================================================================

func TestJoin(t *testing.T) {
	t.Run("BuildsNestedPaths", func(t *testing.T) {
		p, err := Join(Root, "a")
		require.NoError(t, err)
		assert.Equal(t, Path("a"), p)

		p, err = Join(p, "b")
		require.NoError(t, err)
		assert.Equal(t, Path("a/b"), p)
	})

	t.Run("DotDenotesTheRoot", func(t *testing.T) {
		p, err := Join(Root, ".")
		require.NoError(t, err)
		assert.Equal(t, Root, p)
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := Join(Path("a"), "..")
		assert.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	t.Run("AcceptsRootSpellings", func(t *testing.T) {
		for _, s := range []string{".", ""} {
			p, err := Parse(s)
			require.NoError(t, err)
			assert.True(t, p.IsRoot())
		}
	})

	t.Run("ValidatesEveryComponent", func(t *testing.T) {
		p, err := Parse("a/b/c")
		require.NoError(t, err)
		assert.Equal(t, Path("a/b/c"), p)

		_, err = Parse("a/../b")
		assert.Error(t, err)

		_, err = Parse("a//b")
		assert.Error(t, err)
	})
}

// ============================================================================
// Path accessors
// ============================================================================

func TestPathAccessors(t *testing.T) {
	t.Run("Level", func(t *testing.T) {
		assert.Equal(t, uint(0), Root.Level())
		assert.Equal(t, uint(1), Path("a").Level())
		assert.Equal(t, uint(3), Path("a/b/c").Level())
	})

	t.Run("BaseAndParent", func(t *testing.T) {
		assert.Equal(t, "c", Path("a/b/c").Base())
		assert.Equal(t, Path("a/b"), Path("a/b/c").Parent())
		assert.Equal(t, Root, Path("a").Parent())
		assert.Equal(t, Root, Root.Parent())
	})

	t.Run("TopFolder", func(t *testing.T) {
		assert.Equal(t, "a", Path("a/b/c").TopFolder())
		assert.Equal(t, "a", Path("a").TopFolder())
		assert.Equal(t, ".", Root.TopFolder())
	})
}

func TestIsAncestorOrEqual(t *testing.T) {
	assert.True(t, Path("a/b").IsAncestorOrEqual(Path("a/b")))
	assert.True(t, Path("a/b").IsAncestorOrEqual(Path("a/b/c")))
	assert.True(t, Root.IsAncestorOrEqual(Path("a")))

	// A sibling sharing the byte prefix is not a descendant.
	assert.False(t, Path("a/b").IsAncestorOrEqual(Path("a/bc")))
	assert.False(t, Path("a/b").IsAncestorOrEqual(Path("a")))
}

func TestRebase(t *testing.T) {
	assert.Equal(t, Path("z/c"), Path("a/b/c").Rebase(Path("a/b"), Path("z")))
	assert.Equal(t, Path("z"), Path("a/b").Rebase(Path("a/b"), Path("z")))
	assert.Equal(t, Path("c"), Path("a/b/c").Rebase(Path("a/b"), Root))

	// Unrelated paths are left alone.
	assert.Equal(t, Path("x/y"), Path("x/y").Rebase(Path("a"), Path("z")))
}

// ============================================================================
// Layout
// ============================================================================

func TestLayoutZoneRoot(t *testing.T) {
	t.Run("ShardsScopeIDs", func(t *testing.T) {
		l := Layout{BaseDir: t.TempDir()}

		dir, err := l.ZoneRoot(zone.AdmiDocCrs, 1234, 0)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(l.BaseDir, "course", "34", "1234", "doc"), dir)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("AddsSecondaryScopeLevel", func(t *testing.T) {
		l := Layout{BaseDir: t.TempDir()}

		dir, err := l.ZoneRoot(zone.AdmiWrkUsr, 7, 205)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(l.BaseDir, "course", "07", "7", "usr", "05", "205", "trabajos"), dir)
	})

	t.Run("RejectsMismatchedSecondaryScope", func(t *testing.T) {
		l := Layout{BaseDir: t.TempDir()}

		_, err := l.ZoneRoot(zone.AdmiDocCrs, 7, 205)
		assert.Error(t, err)

		_, err = l.ZoneRoot(zone.AdmiWrkUsr, 7, 0)
		assert.Error(t, err)
	})
}

func TestLayoutEachSecondaryRoot(t *testing.T) {
	l := Layout{BaseDir: t.TempDir()}

	for _, userID := range []int64{5, 105, 32} {
		_, err := l.ZoneRoot(zone.AdmiAsgUsr, 9, userID)
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	err := l.EachSecondaryRoot(zone.AdmiAsgUsr, 9, func(userID int64, rootDir string) error {
		seen[userID] = true
		info, err := os.Stat(rootDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{5: true, 105: true, 32: true}, seen)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/data/doc", Resolve("/data/doc", Root))
	assert.Equal(t, filepath.Join("/data/doc", "a", "b"), Resolve("/data/doc", Path("a/b")))
}
