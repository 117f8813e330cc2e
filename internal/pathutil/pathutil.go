// Package pathutil provides the pure path operations the composition
// engine builds on: parent/leaf decomposition, the POSIX-style path
// grammar, glob recognition, and glob expansion under a working directory.
package pathutil

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
)

// Parent strips trailing slashes then the last path component.
// For absolute input the result is "/" when no component remains; for
// relative input it is ".".
func Parent(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		// p was "/" or "" or all slashes.
		if strings.HasPrefix(p, "/") {
			return "/"
		}
		return "."
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		if strings.HasPrefix(p, "/") {
			return "/"
		}
		return "."
	}
	if idx == 0 {
		return "/"
	}
	return trimmed[:idx]
}

// Leaf strips trailing slashes then returns the last path component.
// "/" -> "/", "." -> ".", "" -> "".
func Leaf(p string) string {
	if p == "" {
		return ""
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// Validate checks p against the path grammar: "/" on its own, or one or more
// "/component" groups (each component neither "." nor ".."), with an
// optional single trailing slash. Validation is purely lexical.
func Validate(p string) bool {
	if p == "/" {
		return true
	}
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	core := p
	if strings.HasSuffix(core, "/") {
		core = core[:len(core)-1]
	}
	parts := strings.Split(core, "/")
	if len(parts) < 2 || parts[0] != "" {
		return false
	}
	for _, part := range parts[1:] {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// ContainsGlob reports whether s contains an unescaped glob metacharacter:
// *, ?, [...], +(...), @(...), !(...). Backslash-escaped metacharacters do
// not count.
func ContainsGlob(s string) bool {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' {
			i++ // skip the escaped character entirely
			continue
		}
		switch c {
		case '*', '?':
			return true
		case '[':
			if hasUnescapedClose(runes, i+1, ']') {
				return true
			}
		case '+', '@', '!':
			if i+1 < len(runes) && runes[i+1] == '(' {
				if hasUnescapedClose(runes, i+2, ')') {
					return true
				}
			}
		}
	}
	return false
}

// hasUnescapedClose reports whether, starting at offset, there is an
// unescaped occurrence of close before the end of the string or before an
// unescaped path separator — a bracket/extglob group cannot span across a
// "/" into another path component.
func hasUnescapedClose(runes []rune, offset int, close rune) bool {
	for i := offset; i < len(runes); i++ {
		if runes[i] == '\\' {
			i++
			continue
		}
		if runes[i] == '/' {
			return false
		}
		if runes[i] == close {
			return true
		}
	}
	return false
}

// ExpandGlob enumerates filesystem matches of pattern relative to cwd,
// including dotfiles, without following symlinks outside of matched
// entries, returning an empty slice when nothing matches. It does not
// alter process state observable to the caller (no chdir, no umask change).
//
// Patterns using only *, ?, and [...] are resolved with filepath.Glob
// (which, unlike a shell, already matches dotfiles since it has no special
// leading-dot rule). Patterns using the extglob groups +(...), @(...), or
// !(...) are resolved with a small component-by-component walker, since
// filepath.Match has no notion of those groups.
func ExpandGlob(cwd, pattern string) ([]string, error) {
	if usesExtglob(pattern) {
		matches, err := expandGlobWalk(cwd, pattern)
		if err != nil {
			return nil, errs.New(errs.KindInternal, pattern, "glob expand: %w", err)
		}
		return matches, nil
	}
	full := filepath.Join(cwd, pattern)
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, errs.New(errs.KindInternal, pattern, "glob expand: %w", err)
	}
	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		r, err := filepath.Rel(cwd, m)
		if err != nil {
			return nil, errs.New(errs.KindInternal, pattern, "glob rel: %w", err)
		}
		rel = append(rel, r)
	}
	return rel, nil
}

func usesExtglob(s string) bool {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' {
			i++
			continue
		}
		if (c == '+' || c == '@' || c == '!') && i+1 < len(runes) && runes[i+1] == '(' {
			return true
		}
	}
	return false
}

// OSPathType reports "d" for a directory, "f" for a regular file, or an
// error. Symlinks are rejected as an error, and an absent path is a
// distinct error from "unsupported type".
func OSPathType(p string) (string, error) {
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.KindPathNoMatch, p, "path does not exist")
		}
		return "", errs.Wrap(errs.KindInternal, p, err)
	}
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", errs.New(errs.KindPathTypeMismatch, p, "symlinks are not supported")
	case mode.IsDir():
		return "d", nil
	case mode.IsRegular():
		return "f", nil
	default:
		return "", errs.New(errs.KindPathTypeMismatch, p, "unsupported file type %v", mode)
	}
}

// Clean normalizes p the way path.Clean does; a trailing slash in the input
// is not preserved.
func Clean(p string) string {
	return path.Clean(p)
}
