// Package initrunner runs per-path initializers: for each Path that is
// absent in its source tree (or declares init=always) it invokes the
// path's initcmd, either as a canonical action run in-process or as a shell
// subprocess under the documented ILFS_* environment, then verifies the
// result matches the declared type.
package initrunner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/option"
	"github.com/agentic-research/ilfs/internal/pathutil"
	"github.com/agentic-research/ilfs/internal/registry"
	"github.com/agentic-research/ilfs/internal/template"
)

// Runner executes initcmds over a Path Registry.
type Runner struct {
	Trees  *registry.TreeRegistry
	Paths  *registry.PathRegistry
	Global option.Set

	// Shell is the interpreter invoked to run an initcmd; defaults to
	// "/bin/sh" when empty.
	Shell string

	// Lookup resolves ${NAME} references for template_envsubst actions;
	// defaults to the process environment when nil.
	Lookup template.Lookup

	// Op is the ILFS_OP value supplied to initcmds: "init" when this run is
	// an init-only invocation, "mount" when the runner is executing as a
	// precondition of a full mount. Defaults to "init" when empty.
	Op string
}

func (r *Runner) lookup() template.Lookup {
	if r.Lookup != nil {
		return r.Lookup
	}
	return template.OSLookup
}

func (r *Runner) op() string {
	if r.Op != "" {
		return r.Op
	}
	return "init"
}

func (r *Runner) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	return "/bin/sh"
}

// Run walks every registered Path in order and runs its initializer when
// required.
func (r *Runner) Run() error {
	for _, p := range r.Paths.Ordered() {
		if err := r.runOne(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(p *registry.Path) error {
	tree := r.Trees.Get(p.Tree)
	if tree == nil {
		return errs.New(errs.KindInternal, p.Path, "tree %q vanished from registry", p.Tree)
	}

	initVal, err := option.Resolve(option.Init, scopesFor(r.Global, tree, p))
	if err != nil {
		return err
	}

	srcFull := tree.Root + p.Path
	_, statErr := pathutil.OSPathType(srcFull)
	exists := statErr == nil

	required := initVal == option.InitAlways || !exists
	if !required {
		return nil
	}
	if initVal == option.InitNever || initVal == option.InitSkip {
		return errs.New(errs.KindInitRequiredMissing, p.Path, "init=%s but path is missing from tree %q", initVal, p.Tree)
	}

	if strings.TrimSpace(p.InitCmd) == "" {
		return errs.New(errs.KindInitBlankCommand, p.Path, "init=%s requires an initcmd", initVal)
	}

	env, relpath, _ := r.buildEnv(tree, p)
	if err := r.invoke(tree, p, env, relpath); err != nil {
		return err
	}

	typeVal, err := option.Resolve(option.Type, scopesFor(r.Global, tree, p))
	if err != nil {
		return err
	}
	onDisk, statErr := pathutil.OSPathType(srcFull)
	if statErr != nil {
		return errs.New(errs.KindInitResultMismatch, p.Path, "initcmd did not create %q", p.Path)
	}
	if typeVal != option.TypeEither && onDisk != typeVal {
		return errs.New(errs.KindInitResultMismatch, p.Path, "initcmd created %q of type %q, declared %q", p.Path, onDisk, typeVal)
	}

	return nil
}

// invoke runs p.InitCmd, working directory the source tree root and umask
// 022. When InitCmd matches the canonical action-library call shape
// ("mkdir", "template_envsubst(tpl)", "copy(src)") it runs natively;
// otherwise it is shelled out as an opaque command with argument 0 "init"
// and argument 1 ILFS_RELPATH.
func (r *Runner) invoke(tree *registry.Tree, p *registry.Path, env []string, relpathFull string) error {
	oldUmask := umask(0o022)
	defer umask(oldUmask)

	if name, arg, ok := parseAction(p.InitCmd); ok {
		return runAction(name, arg, actionContext{treeRoot: tree.Root, relpath: relpathFull, lookup: r.lookup()})
	}

	relpath := relPath(p.Path)
	cmd := exec.Command(r.shell(), "-c", p.InitCmd, "init", relpath)
	cmd.Dir = tree.Root
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.KindInitFailed, p.Path, fmt.Errorf("initcmd failed: %w (output: %s)", err, strings.TrimSpace(string(out))))
	}
	return nil
}

// buildEnv constructs the ILFS_* subprocess environment, layered
// on top of the caller's own environment so ILFS_INIT_CHOWN/ILFS_INIT_CHGRP,
// when the caller has set them, flow through unchanged.
func (r *Runner) buildEnv(tree *registry.Tree, p *registry.Path) (env []string, relpath, subpath string) {
	relpath = relPath(p.Path)
	existing := longestExistingPrefix(tree.Root, relpath)
	switch {
	case relpath == "." || existing == relpath:
		subpath = ""
	case existing == ".":
		subpath = relpath
	default:
		subpath = strings.TrimPrefix(relpath, existing+"/")
	}

	roVal, _ := option.Resolve(option.Ro, scopesFor(r.Global, tree, p))
	initVal, _ := option.Resolve(option.Init, scopesFor(r.Global, tree, p))
	typeVal, _ := option.Resolve(option.Type, scopesFor(r.Global, tree, p))

	base := os.Environ()
	overlay := map[string]string{
		"ILFS_OP":               r.op(),
		"ILFS_TREE":             tree.Name,
		"ILFS_TREE_ROOT":        tree.Root,
		"ILFS_PATH":             p.Path,
		"ILFS_RELPATH":          relpath,
		"ILFS_EXISTING_RELPATH": existing,
		"ILFS_INIT_SUBPATH":     subpath,
		"ILFS_PATH_OPTS_RO":     roVal,
		"ILFS_PATH_OPTS_INIT":   initVal,
		"ILFS_PATH_OPTS_TYPE":   typeVal,
	}
	env = make([]string, 0, len(base)+len(overlay))
	env = append(env, base...)
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env, relpath, subpath
}

func scopesFor(global option.Set, tree *registry.Tree, p *registry.Path) option.Scopes {
	return option.Scopes{Global: global, Tree: tree.Opts, Path: p.Opts}
}

// relPath returns p without its leading "/", or "." for the root path.
func relPath(p string) string {
	trimmed := strings.TrimPrefix(p, "/")
	if trimmed == "" {
		return "."
	}
	return trimmed
}

// longestExistingPrefix returns the longest leading "/"-delimited prefix of
// relpath that names an existing directory under treeRoot, or "." if none
// beyond the root itself exists.
func longestExistingPrefix(treeRoot, relpath string) string {
	if relpath == "." {
		return "."
	}
	parts := strings.Split(relpath, "/")
	best := "."
	cur := ""
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Stat(filepath.Join(treeRoot, cur))
		if err != nil || !info.IsDir() {
			break
		}
		best = cur
	}
	return best
}
