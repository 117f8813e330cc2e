// Package mountexec drives the mount lifecycle: it runs the initializer
// runner and the mountpoint planner, then issues the bind mounts (and, on
// teardown, the recursive lazy unmount) that make a composed target
// directory live.
package mountexec

import (
	"fmt"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/initrunner"
	"github.com/agentic-research/ilfs/internal/option"
	"github.com/agentic-research/ilfs/internal/plan"
	"github.com/agentic-research/ilfs/internal/registry"
)

// Mounter abstracts the two syscalls this package needs so tests can swap
// in an in-memory recorder instead of touching the real mount table.
type Mounter interface {
	// Bind issues a private bind mount from src onto dest, read-only when
	// ro is true.
	Bind(src, dest string, ro bool) error
	// UnmountRecursive lazily and recursively unmounts everything under
	// target in one operation.
	UnmountRecursive(target string) error
}

// Executor runs the full mount lifecycle over a loaded configuration.
type Executor struct {
	Trees  *registry.TreeRegistry
	Paths  *registry.PathRegistry
	Global option.Set
	Target string

	Mounter Mounter

	// InitOnly runs the Initializer Runner without planning or mounting,
	// matching the CLI's -i flag.
	InitOnly bool

	// Verbose prints each bind mount as it is issued.
	Verbose bool
}

func (e *Executor) mounter() Mounter {
	if e.Mounter != nil {
		return e.Mounter
	}
	return unixMounter{}
}

// Mount requires a path bound to /, runs initializers, prepares
// mountpoints, then binds every path in registration order.
func (e *Executor) Mount() error {
	if !e.Paths.Defined("/") {
		return errs.New(errs.KindNoRootConfigured, e.Target, "no path is bound to /")
	}

	op := "mount"
	if e.InitOnly {
		op = "init"
	}
	runner := &initrunner.Runner{Trees: e.Trees, Paths: e.Paths, Global: e.Global, Op: op}
	if err := runner.Run(); err != nil {
		return err
	}
	if e.InitOnly {
		return nil
	}

	planner := &plan.Planner{Trees: e.Trees, Paths: e.Paths, Target: e.Target}
	if err := planner.Run(); err != nil {
		return err
	}

	mounter := e.mounter()
	for _, p := range e.Paths.Ordered() {
		tree := e.Trees.Get(p.Tree)
		if tree == nil {
			return errs.New(errs.KindInternal, p.Path, "tree %q vanished from registry", p.Tree)
		}
		roVal, err := option.Resolve(option.Ro, option.Scopes{Global: e.Global, Tree: tree.Opts, Path: p.Opts})
		if err != nil {
			return err
		}
		src := tree.Root + p.Path
		dest := e.Target + p.Path
		if e.Verbose {
			mode := "rw"
			if roVal == "1" {
				mode = "ro"
			}
			fmt.Printf("mount %s -> %s (%s)\n", src, dest, mode)
		}
		if err := mounter.Bind(src, dest, roVal == "1"); err != nil {
			return errs.Wrap(errs.KindMountFailed, p.Path, fmt.Errorf("bind %s onto %s: %w", src, dest, err))
		}
	}
	return nil
}

// Unmount performs one recursive lazy unmount of the target. It does not
// undo placeholder creation.
func (e *Executor) Unmount() error {
	if err := e.mounter().UnmountRecursive(e.Target); err != nil {
		return errs.Wrap(errs.KindMountFailed, e.Target, err)
	}
	return nil
}
