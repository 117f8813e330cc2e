// Package registry holds the session's two registries: named source
// directory trees and the ordered list of composed paths bound to them.
package registry

import (
	"os"
	"path/filepath"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/option"
)

// Tree is a named source directory tree with its own option scope.
type Tree struct {
	Name string
	Root string // absolute, symlink-resolved directory path
	Opts option.Set
}

// TreeRegistry stores named Trees, unique per session.
type TreeRegistry struct {
	byName map[string]*Tree
	order  []string
}

// NewTreeRegistry constructs an empty registry.
func NewTreeRegistry() *TreeRegistry {
	return &TreeRegistry{byName: map[string]*Tree{}}
}

// Add registers a new tree. name must be non-empty and unique; rootDir must
// resolve, after symlink resolution, to an existing directory; optstr is
// parsed into the tree's option set.
func (r *TreeRegistry) Add(name, rootDir, optstr string) (*Tree, error) {
	if name == "" {
		return nil, errs.New(errs.KindUsage, "", "tree name must not be empty")
	}
	if _, exists := r.byName[name]; exists {
		return nil, errs.New(errs.KindDuplicateTree, name, "tree %q already defined", name)
	}
	resolved, err := filepath.EvalSymlinks(rootDir)
	if err != nil {
		return nil, errs.New(errs.KindInvalidTreeRoot, rootDir, "resolve tree root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return nil, errs.New(errs.KindInvalidTreeRoot, rootDir, "tree root is not a directory")
	}
	opts, err := option.Parse(optstr)
	if err != nil {
		return nil, err
	}
	t := &Tree{Name: name, Root: resolved, Opts: opts}
	r.byName[name] = t
	r.order = append(r.order, name)
	return t, nil
}

// Defined reports whether name is a registered tree.
func (r *TreeRegistry) Defined(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Get returns the tree by name, or nil if undefined.
func (r *TreeRegistry) Get(name string) *Tree {
	return r.byName[name]
}

// Names returns the registered tree names in insertion order.
func (r *TreeRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
