package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	readOnly = false
	initOnly = false
	optStrings = nil
	treeFile = ""
	pathFile = ""
	unmountArg = ""
	verbose = false
}

func TestBuildGlobalOptstr(t *testing.T) {
	defer resetFlags()

	readOnly = true
	optStrings = []string{"init=missing"}
	assert.Equal(t, "ro,init=missing", buildGlobalOptstr())

	resetFlags()
	assert.Equal(t, "", buildGlobalOptstr())
}

func TestRunMountRequiresTreeAndPathFiles(t *testing.T) {
	defer resetFlags()
	resetFlags()

	err := runMount(t.TempDir())
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUsage, kind)
}

func TestRunMountInitOnly(t *testing.T) {
	defer resetFlags()
	resetFlags()

	srcRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "data"), 0o755))

	treesPath := filepath.Join(t.TempDir(), "trees")
	pathsPath := filepath.Join(t.TempDir(), "paths")
	require.NoError(t, os.WriteFile(treesPath, []byte("root "+srcRoot+"\n"), 0o644))
	require.NoError(t, os.WriteFile(pathsPath, []byte("root /\n"), 0o644))

	treeFile = treesPath
	pathFile = pathsPath
	initOnly = true

	require.NoError(t, runMount(t.TempDir()))
}
