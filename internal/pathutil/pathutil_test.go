package pathutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	for _, p := range []string{
		"/", "/a", "/dir/sub", "/...", "/a/...", "/a/.../x",
		"/a/.x", "/a/.x/dir",
	} {
		assert.True(t, Validate(p), "expected %q to be valid", p)
	}
}

func TestValidateRejects(t *testing.T) {
	for _, p := range []string{
		".", "..", "a", "/.", "/./", "/..", "/../", "//", "//dir",
		"/dir//sub", "/dir/..", "/dir/sub/..", "/dir/./sub",
		"/dir1/../dir2", "",
	} {
		assert.False(t, Validate(p), "expected %q to be invalid", p)
	}
}

func TestContainsGlob(t *testing.T) {
	for _, p := range []string{"*", "/x/*.jpg", "x?", "x/+(x)", "a/[bc]/d"} {
		assert.True(t, ContainsGlob(p), "expected %q to contain a glob", p)
	}
	for _, p := range []string{`[/]`, `x/+\(x)`, `a/[bc\]/d`} {
		assert.False(t, ContainsGlob(p), "expected %q to not contain a glob", p)
	}
}

func TestParentAndLeaf(t *testing.T) {
	assert.Equal(t, "/a", Parent("/a/b"))
	assert.Equal(t, "/", Parent("/a/"))
	assert.Equal(t, "/", Parent("/"))
	assert.Equal(t, "a", Parent("a/b"))
	assert.Equal(t, ".", Parent("a/"))
	assert.Equal(t, ".", Parent("."))

	assert.Equal(t, "/", Leaf("/"))
	assert.Equal(t, ".", Leaf("."))
	assert.Equal(t, "", Leaf(""))
	assert.Equal(t, "b", Leaf("/a/b"))
	assert.Equal(t, "a", Leaf("/a/"))
}

func TestExpandGlobDotfilesAndEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0o644))

	matches, err := ExpandGlob(dir, "*")
	require.NoError(t, err)
	sort.Strings(matches)
	assert.Equal(t, []string{".hidden", "visible.txt"}, matches)

	none, err := ExpandGlob(dir, "*.nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExpandGlobExtglob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bar.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))

	matches, err := ExpandGlob(dir, "@(foo|bar).go")
	require.NoError(t, err)
	sort.Strings(matches)
	assert.Equal(t, []string{"bar.go", "foo.go"}, matches)
}

func TestOSPathType(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	typ, err := OSPathType(dir)
	require.NoError(t, err)
	assert.Equal(t, "d", typ)

	typ, err = OSPathType(file)
	require.NoError(t, err)
	assert.Equal(t, "f", typ)

	_, err = OSPathType(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(file, link))
	_, err = OSPathType(link)
	assert.Error(t, err)
}
