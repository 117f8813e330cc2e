// Package session ties the config loader, mountpoint planner, initializer
// runner, and mount executor together behind a single object holding the
// registries and the global option scope, so callers never touch shared
// state.
package session

import (
	"github.com/agentic-research/ilfs/internal/config"
	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/mountexec"
	"github.com/agentic-research/ilfs/internal/option"
	"github.com/agentic-research/ilfs/internal/registry"
	"github.com/agentic-research/ilfs/internal/template"
)

// State names one point in the session lifecycle:
// uninit -> configured -> planned -> mounted, with unmounted reachable from
// mounted and failed reachable from anywhere an error occurs.
type State string

const (
	StateUninit     State = "uninit"
	StateConfigured State = "configured"
	StatePlanned    State = "planned"
	StateMounted    State = "mounted"
	StateUnmounted  State = "unmounted"
	StateFailed     State = "failed"
)

// Session holds the three registries, the global option scope, and the
// target directory, and drives them through the lifecycle above. A zero
// Session is ready to use.
type Session struct {
	Target string
	Global option.Set

	Trees *registry.TreeRegistry
	Paths *registry.PathRegistry

	// Lookup resolves ${NAME} references during Configure; defaults to the
	// process environment when nil.
	Lookup template.Lookup

	// Mounter is forwarded to the Mount Executor; nil selects the real
	// Linux syscalls.
	Mounter mountexec.Mounter

	// Verbose prints each bind mount as it is issued.
	Verbose bool

	state State
}

// New constructs a Session targeting dir, with global options parsed from
// the concatenation of every -o value the caller collected.
func New(dir, globalOptstr string) (*Session, error) {
	global, err := option.Parse(globalOptstr)
	if err != nil {
		return nil, err
	}
	return &Session{
		Target: dir,
		Global: global,
		state:  StateUninit,
	}, nil
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

func (s *Session) fail(err error) error {
	s.state = StateFailed
	return err
}

// Configure loads the trees and paths tables, populating the registries.
func (s *Session) Configure(treeData, pathData []byte) error {
	loader := config.NewLoader()
	loader.Lookup = s.Lookup
	if err := loader.LoadTrees(treeData); err != nil {
		return s.fail(err)
	}
	if err := loader.LoadPaths(pathData); err != nil {
		return s.fail(err)
	}
	s.Trees = loader.Trees
	s.Paths = loader.Paths
	s.state = StateConfigured
	return nil
}

func (s *Session) executor() (*mountexec.Executor, error) {
	if s.state != StateConfigured && s.state != StatePlanned {
		return nil, errs.New(errs.KindInternal, s.Target, "session not configured")
	}
	return &mountexec.Executor{
		Trees:   s.Trees,
		Paths:   s.Paths,
		Global:  s.Global,
		Target:  s.Target,
		Mounter: s.Mounter,
		Verbose: s.Verbose,
	}, nil
}

// InitOnly runs the Initializer Runner without planning or mounting,
// matching the CLI's -i flag.
func (s *Session) InitOnly() error {
	exec, err := s.executor()
	if err != nil {
		return s.fail(err)
	}
	exec.InitOnly = true
	if err := exec.Mount(); err != nil {
		return s.fail(err)
	}
	s.state = StatePlanned
	return nil
}

// Mount runs the Initializer Runner, the Mountpoint Planner, and issues the
// bind mounts.
func (s *Session) Mount() error {
	exec, err := s.executor()
	if err != nil {
		return s.fail(err)
	}
	if err := exec.Mount(); err != nil {
		return s.fail(err)
	}
	s.state = StateMounted
	return nil
}

// Unmount performs the recursive lazy unmount of Target. It is valid from
// any state: a caller may unmount a target mounted by an earlier session.
func (s *Session) Unmount() error {
	exec := &mountexec.Executor{Target: s.Target, Mounter: s.Mounter}
	if err := exec.Unmount(); err != nil {
		return s.fail(err)
	}
	s.state = StateUnmounted
	return nil
}
