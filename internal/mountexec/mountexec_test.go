package mountexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/option"
	"github.com/agentic-research/ilfs/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMounter is an in-memory Mounter double recording every Bind and
// UnmountRecursive call, standing in for the kernel mount table in tests.
type recordingMounter struct {
	binds   []bindCall
	unmount []string
	failOn  string
}

type bindCall struct {
	src, dest string
	ro        bool
}

func (m *recordingMounter) Bind(src, dest string, ro bool) error {
	if m.failOn != "" && dest == m.failOn {
		return errs.New(errs.KindMountFailed, dest, "simulated failure")
	}
	m.binds = append(m.binds, bindCall{src, dest, ro})
	return nil
}

func (m *recordingMounter) UnmountRecursive(target string) error {
	m.unmount = append(m.unmount, target)
	return nil
}

func setup(t *testing.T) (*registry.TreeRegistry, *registry.PathRegistry, string) {
	t.Helper()
	root := t.TempDir()
	trees := registry.NewTreeRegistry()
	_, err := trees.Add("root", root, "")
	require.NoError(t, err)
	paths := registry.NewPathRegistry()
	return trees, paths, root
}

func TestExecutorRequiresRootPath(t *testing.T) {
	trees, paths, root := setup(t)
	_ = root
	exec := &Executor{Trees: trees, Paths: paths, Target: t.TempDir(), Mounter: &recordingMounter{}}
	err := exec.Mount()
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNoRootConfigured, kind)
}

func TestExecutorMountsInOrder(t *testing.T) {
	trees, paths, root := setup(t)
	require.NoError(t, paths.Add(&registry.Path{Path: "/", Tree: "root", TypeVal: "d"}))
	require.NoError(t, paths.Add(&registry.Path{Path: "/app", Tree: "root", TypeVal: "d",
		Opts: option.Set{option.Ro: "1"}}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o755))

	mounter := &recordingMounter{}
	target := t.TempDir()
	exec := &Executor{Trees: trees, Paths: paths, Target: target, Mounter: mounter}
	require.NoError(t, exec.Mount())

	require.Len(t, mounter.binds, 2)
	assert.Equal(t, "/", mounter.binds[0].dest[len(target):])
	assert.False(t, mounter.binds[0].ro)
	assert.Equal(t, "/app", mounter.binds[1].dest[len(target):])
	assert.True(t, mounter.binds[1].ro)
}

func TestExecutorInitOnlySkipsMount(t *testing.T) {
	trees, paths, root := setup(t)
	require.NoError(t, paths.Add(&registry.Path{Path: "/", Tree: "root", TypeVal: "d"}))
	_ = root

	mounter := &recordingMounter{}
	exec := &Executor{Trees: trees, Paths: paths, Target: t.TempDir(), Mounter: mounter, InitOnly: true}
	require.NoError(t, exec.Mount())
	assert.Empty(t, mounter.binds)
}

func TestExecutorMountFailureAborts(t *testing.T) {
	trees, paths, root := setup(t)
	require.NoError(t, paths.Add(&registry.Path{Path: "/", Tree: "root", TypeVal: "d"}))
	require.NoError(t, paths.Add(&registry.Path{Path: "/app", Tree: "root", TypeVal: "d"}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o755))

	target := t.TempDir()
	mounter := &recordingMounter{failOn: target + "/app"}
	exec := &Executor{Trees: trees, Paths: paths, Target: target, Mounter: mounter}
	err := exec.Mount()
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindMountFailed, kind)
	assert.Len(t, mounter.binds, 1)
}

func TestExecutorUnmountDelegatesToMounter(t *testing.T) {
	trees, paths, _ := setup(t)
	target := t.TempDir()
	mounter := &recordingMounter{}
	exec := &Executor{Trees: trees, Paths: paths, Target: target, Mounter: mounter}
	require.NoError(t, exec.Unmount())
	assert.Equal(t, []string{target}, mounter.unmount)
}
