// Package plan prepares mountpoints: for each composed path it ensures a
// placeholder of matching type exists in the parent-in-registry's source
// tree so the bind mount can be issued onto it.
package plan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/registry"
)

// MarkerFile is the name dropped in every directory the planner creates, so
// system-owned placeholders can be told apart from operator content.
const MarkerFile = ".ilfs-mountpoint"

// MarkerFileContent is the single line written into a placeholder regular
// file.
const MarkerFileContent = "#ilfs-mountpoint\n"

// Planner runs the placeholder-creation algorithm over a Path Registry.
type Planner struct {
	Trees *registry.TreeRegistry
	Paths *registry.PathRegistry
	// Target is the top-level directory the whole composition mounts
	// onto; it stands in for the "parent" of any Path with no registered
	// ancestor.
	Target string
}

// Run walks every registered Path in order and ensures its mountpoint
// placeholder exists on its parent-in-registry's source tree.
func (p *Planner) Run() error {
	for _, path := range p.Paths.Ordered() {
		if err := p.ensure(path); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) ensure(path *registry.Path) error {
	srcTree := p.Trees.Get(path.Tree)
	if srcTree == nil {
		return errs.New(errs.KindInternal, path.Path, "tree %q vanished from registry", path.Tree)
	}

	parentRoot := p.Target
	if parent := p.Paths.ParentInRegistry(path.Path); parent != nil {
		parentTree := p.Trees.Get(parent.Tree)
		if parentTree == nil {
			return errs.New(errs.KindInternal, path.Path, "parent tree %q vanished from registry", parent.Tree)
		}
		parentRoot = parentTree.Root
	}

	dest := filepath.Join(parentRoot, path.Path)
	typ := path.TypeVal
	if typ == "" || typ == "e" {
		typ = resolvedOnDiskOrDefault(srcTree.Root, path.Path)
	}

	if info, err := os.Lstat(dest); err == nil {
		actual := "f"
		if info.IsDir() {
			actual = "d"
		}
		if actual != typ {
			return errs.New(errs.KindMountpointCollision, path.Path, "existing placeholder is %q, expected %q", actual, typ)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return errs.Wrap(errs.KindInternal, path.Path, err)
	}

	return createPlaceholder(parentRoot, path.Path, typ)
}

// resolvedOnDiskOrDefault inspects the source object to decide whether an
// "e" (either) path should get a directory or file placeholder, defaulting
// to a directory when the source does not exist either (matching §4.8,
// which may yet create it).
func resolvedOnDiskOrDefault(treeRoot, p string) string {
	info, err := os.Stat(filepath.Join(treeRoot, p))
	if err != nil {
		return "d"
	}
	if info.IsDir() {
		return "d"
	}
	return "f"
}

// createPlaceholder creates every missing intermediate directory between
// parentRoot and parentRoot+p, dropping MarkerFile in each one it creates,
// then creates the leaf itself: a directory if typ=="d", or a single-line
// marker regular file if typ=="f".
func createPlaceholder(parentRoot, p string, typ string) error {
	rel := strings.TrimPrefix(p, "/")
	components := strings.Split(rel, "/")
	if rel == "" {
		components = nil
	}

	oldUmask := umask(0o022)
	defer umask(oldUmask)

	cur := parentRoot
	for i, c := range components {
		cur = filepath.Join(cur, c)
		isLeaf := i == len(components)-1
		if isLeaf {
			break
		}
		if err := mkdirWithMarker(cur); err != nil {
			return errs.Wrap(errs.KindMountpointCollision, p, err)
		}
	}

	leaf := filepath.Join(parentRoot, rel)
	switch typ {
	case "d":
		if err := mkdirWithMarker(leaf); err != nil {
			return errs.Wrap(errs.KindMountpointCollision, p, err)
		}
	case "f":
		if err := os.WriteFile(leaf, []byte(MarkerFileContent), 0o644); err != nil {
			return errs.Wrap(errs.KindMountpointCollision, p, err)
		}
	default:
		return errs.New(errs.KindInternal, p, "unresolved placeholder type %q", typ)
	}
	return nil
}

func mkdirWithMarker(dir string) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return errs.New(errs.KindMountpointCollision, dir, "non-directory exists where a directory is expected")
		}
		return nil
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return err
	}
	marker := filepath.Join(dir, MarkerFile)
	return os.WriteFile(marker, nil, 0o644)
}
