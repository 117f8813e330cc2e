package initrunner

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/template"
)

// actionContext carries the values a canonical action needs out of the
// initializer environment, without forcing callers through a subprocess.
type actionContext struct {
	treeRoot string
	relpath  string
	lookup   template.Lookup
}

func (c actionContext) dest() string { return filepath.Join(c.treeRoot, c.relpath) }

var reCallOneArg = regexp.MustCompile(`^([a-z_]+)\(([^()]*)\)$`)

// bareActions are the action names callable with no argument.
var bareActions = map[string]bool{"mkdir": true}

// argActions are the action names that require a single argument.
var argActions = map[string]bool{"template_envsubst": true, "copy": true}

// parseAction recognizes one of the canonical action-library calls: a bare
// name ("mkdir") or a single-argument call ("template_envsubst(tpl)",
// "copy(src)"). Anything else, including an arbitrary bare shell word such
// as "true" or "ls", is not an action and ok is false, so the caller falls
// back to shelling the command out verbatim.
func parseAction(cmd string) (name, arg string, ok bool) {
	cmd = strings.TrimSpace(cmd)
	if bareActions[cmd] {
		return cmd, "", true
	}
	if m := reCallOneArg.FindStringSubmatch(cmd); m != nil && argActions[m[1]] {
		return m[1], strings.TrimSpace(m[2]), true
	}
	return "", "", false
}

// runAction executes a canonical action in-process and applies any pending
// ownership adjustment from ILFS_INIT_CHOWN/ILFS_INIT_CHGRP to the
// destination path. Intermediate directories it created, and entries nested
// under a copied directory, keep the ownership they were created with. A
// relative argument is resolved against the source tree root.
func runAction(name, arg string, ctx actionContext) error {
	if arg != "" && !filepath.IsAbs(arg) {
		arg = filepath.Join(ctx.treeRoot, arg)
	}
	var err error
	switch name {
	case "mkdir":
		err = actionMkdir(ctx)
	case "template_envsubst":
		err = actionTemplateEnvsubst(arg, ctx)
	case "copy":
		err = actionCopy(arg, ctx)
	default:
		return errs.New(errs.KindInitFailed, ctx.relpath, "unknown initializer action %q", name)
	}
	if err != nil {
		return errs.Wrap(errs.KindInitFailed, ctx.relpath, err)
	}
	return applyOwnership(ctx.dest())
}

func actionMkdir(ctx actionContext) error {
	return os.MkdirAll(ctx.dest(), 0o755)
}

func actionTemplateEnvsubst(tpl string, ctx actionContext) error {
	data, err := os.ReadFile(tpl)
	if err != nil {
		return err
	}
	rendered, err := template.SubstituteStream(data, ctx.lookup)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ctx.dest()), 0o755); err != nil {
		return err
	}
	return os.WriteFile(ctx.dest(), rendered, 0o644)
}

func actionCopy(src string, ctx actionContext) error {
	dest := ctx.dest()
	if _, err := os.Lstat(dest); err == nil {
		return errs.New(errs.KindInitFailed, ctx.relpath, "copy destination %q already exists", dest)
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyTree(src, dest)
	}
	return copyFile(src, dest, info.Mode())
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// applyOwnership honors ILFS_INIT_CHOWN/ILFS_INIT_CHGRP, a caller-set
// environment convention (not part of the subprocess overlay) naming the
// numeric uid/gid to apply to path. Only path itself is changed; nothing
// above or below it is adjusted.
func applyOwnership(path string) error {
	uid := -1
	gid := -1
	if v := os.Getenv("ILFS_INIT_CHOWN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		uid = n
	}
	if v := os.Getenv("ILFS_INIT_CHGRP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		gid = n
	}
	if uid == -1 && gid == -1 {
		return nil
	}
	return os.Chown(path, uid, gid)
}
