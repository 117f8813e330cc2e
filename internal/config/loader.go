// Package config loads the treefile and pathfile tables from byte streams:
// each stream runs through the environment substitutor, is tokenized into
// whitespace-separated fields with trailing-comment handling, has glob
// pathspecs expanded against the source tree, and populates the Tree and
// Path registries.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/option"
	"github.com/agentic-research/ilfs/internal/pathutil"
	"github.com/agentic-research/ilfs/internal/registry"
	"github.com/agentic-research/ilfs/internal/template"
)

// Loader reads the two configuration tables into a Tree and Path registry.
type Loader struct {
	Trees *registry.TreeRegistry
	Paths *registry.PathRegistry
	// Lookup resolves ${NAME} references; defaults to the process
	// environment when nil.
	Lookup template.Lookup
}

// NewLoader constructs a Loader with fresh, empty registries.
func NewLoader() *Loader {
	return &Loader{
		Trees: registry.NewTreeRegistry(),
		Paths: registry.NewPathRegistry(),
	}
}

func (l *Loader) lookup() template.Lookup {
	if l.Lookup != nil {
		return l.Lookup
	}
	return template.OSLookup
}

// LoadTrees reads the trees table: "name root [opts]" per line.
func (l *Loader) LoadTrees(data []byte) error {
	expanded, err := template.SubstituteStream(data, l.lookup())
	if err != nil {
		return err
	}
	return forEachLine(expanded, func(lineNo int, raw string) error {
		fields, ok := tokenizeRecord(raw, 3)
		if !ok {
			return nil
		}
		ctx := fmt.Sprintf("trees line %d", lineNo)
		if len(fields) < 2 {
			return errs.New(errs.KindUsage, ctx, "missing root for tree %q", fields[0])
		}
		name := fields[0]
		root := fields[1]
		optstr := ""
		if len(fields) > 2 {
			optstr = fields[2]
		}
		if _, err := l.Trees.Add(name, root, optstr); err != nil {
			return annotateLine(err, ctx)
		}
		return nil
	})
}

// LoadPaths reads the paths table: "tree pathspec [opts [initcmd...]]" per
// line. initcmd, when present, is the verbatim remainder of the line.
func (l *Loader) LoadPaths(data []byte) error {
	expanded, err := template.SubstituteStream(data, l.lookup())
	if err != nil {
		return err
	}
	return forEachLine(expanded, func(lineNo int, raw string) error {
		ctx := fmt.Sprintf("paths line %d", lineNo)
		return l.loadPathLine(raw, ctx)
	})
}

func (l *Loader) loadPathLine(raw, ctx string) error {
	fields, ok := tokenizeRecordWithRemainder(raw, 4)
	if !ok {
		return nil
	}
	if len(fields) < 2 {
		return errs.New(errs.KindUsage, ctx, "missing pathspec")
	}
	treeName := fields[0]
	pathspec := fields[1]
	optstr := ""
	initcmd := ""
	if len(fields) > 2 {
		optstr = fields[2]
	}
	if len(fields) > 3 {
		initcmd = fields[3]
	}

	tree := l.Trees.Get(treeName)
	if tree == nil {
		return errs.New(errs.KindUnknownTree, ctx, "unknown tree %q", treeName)
	}

	lineOpts, err := option.Parse(optstr)
	if err != nil {
		return annotateLine(err, ctx)
	}

	isGlob := pathutil.ContainsGlob(pathspec)
	if isGlob {
		if v, ok := lineOpts[option.Init]; ok && v != option.InitSkip && v != option.InitNever {
			return errs.New(errs.KindInitForbiddenGlob, ctx, "init=%s forbidden on glob path %q", v, pathspec)
		}
		if _, ok := lineOpts[option.Init]; !ok {
			lineOpts[option.Init] = option.InitSkip
		}
	}

	endsWithSlash := strings.HasSuffix(pathspec, "/") && pathspec != "/"
	if endsWithSlash {
		if v, ok := lineOpts[option.Type]; ok && v != option.TypeDir && v != option.TypeEither {
			return errs.New(errs.KindPathInvalid, ctx, "type=%s incompatible with trailing slash on %q", v, pathspec)
		}
		lineOpts[option.Type] = option.TypeDir
		pathspec = strings.TrimSuffix(pathspec, "/")
		if pathspec == "" {
			pathspec = "/"
		}
	}

	normalized := pathspec
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if !pathutil.Validate(normalized) {
		return errs.New(errs.KindPathInvalid, ctx, "invalid path %q", pathspec)
	}

	effectiveType := lineOpts[option.Type]
	if effectiveType == "" {
		effectiveType = option.TypeEither
	}

	var expanded []string
	if isGlob {
		rel := strings.TrimPrefix(normalized, "/")
		matches, err := pathutil.ExpandGlob(tree.Root, rel)
		if err != nil {
			return annotateLine(err, ctx)
		}
		for _, m := range matches {
			expanded = append(expanded, "/"+m)
		}
	} else {
		initVal := lineOpts[option.Init]
		srcFull := tree.Root + normalized
		_, statErr := pathutil.OSPathType(srcFull)
		exists := statErr == nil
		if !exists && initVal != option.InitMissing && initVal != option.InitAlways && initVal != option.InitSkip {
			return errs.New(errs.KindPathNoMatch, ctx, "path %q does not exist in tree %q and init=%s requires it", pathspec, treeName, orDefault(initVal, option.InitNever))
		}
		expanded = []string{normalized}
	}

	for _, p := range expanded {
		if !pathutil.Validate(p) {
			return errs.New(errs.KindPathInvalid, ctx, "invalid expanded path %q", p)
		}
		typ := effectiveType
		srcFull := tree.Root + p
		if onDisk, statErr := pathutil.OSPathType(srcFull); statErr == nil {
			if typ != option.TypeEither && onDisk != typ {
				return errs.New(errs.KindPathTypeMismatch, ctx, "path %q is %q on disk, declared %q", p, onDisk, typ)
			}
			typ = onDisk
		}
		rp := &registry.Path{
			Path:    p,
			Tree:    treeName,
			TypeVal: typ,
			InitCmd: initcmd,
			Opts:    lineOpts,
			IsGlob:  isGlob,
		}
		if err := l.Paths.Add(rp); err != nil {
			return annotateLine(err, ctx)
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func annotateLine(err error, ctx string) error {
	if e, ok := err.(*errs.Error); ok {
		if e.Context == "" {
			e.Context = ctx
		}
		return e
	}
	return err
}

// forEachLine splits expanded config text into logical lines and invokes fn
// for each non-blank, non-comment line together with its 1-based line number.
func forEachLine(data []byte, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// tokenizeRecord splits a line into up to maxFields whitespace-separated
// fields, stopping at a field that starts with "#" (trailing comment).
func tokenizeRecord(line string, maxFields int) ([]string, bool) {
	fields := splitDroppingComment(line)
	if len(fields) == 0 {
		return nil, false
	}
	if len(fields) > maxFields {
		fields = fields[:maxFields]
	}
	return fields, true
}

// tokenizeRecordWithRemainder is like tokenizeRecord but the last field (the
// initcmd) captures the verbatim remainder of the line starting at its
// first field, not just one whitespace-delimited token.
func tokenizeRecordWithRemainder(line string, maxFields int) ([]string, bool) {
	fields := strings.Fields(stripTrailingComment(line))
	if len(fields) == 0 {
		return nil, false
	}
	if len(fields) <= maxFields-1 {
		return fields, true
	}
	// Recombine everything from the (maxFields-1)th field onward verbatim
	// from the original line, preserving internal whitespace.
	head := fields[:maxFields-1]
	rest := remainderAfterFields(line, maxFields-1)
	out := append(append([]string{}, head...), rest)
	return out, true
}

// splitDroppingComment splits on whitespace, stopping at the first field
// beginning with "#".
func splitDroppingComment(line string) []string {
	raw := strings.Fields(line)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if strings.HasPrefix(f, "#") {
			break
		}
		out = append(out, f)
	}
	return out
}

// stripTrailingComment removes a trailing "# ..." comment that starts at a
// whitespace-separated field boundary, without disturbing earlier content.
func stripTrailingComment(line string) string {
	fields := strings.Fields(line)
	cut := len(line)
	pos := 0
	for _, f := range fields {
		idx := strings.Index(line[pos:], f)
		start := pos + idx
		if strings.HasPrefix(f, "#") {
			cut = start
			break
		}
		pos = start + len(f)
	}
	return line[:cut]
}

// remainderAfterFields returns the verbatim remainder of line starting at
// the (n+1)th whitespace-separated field, trailing comment already
// excluded, with surrounding whitespace trimmed.
func remainderAfterFields(line string, n int) string {
	withoutComment := stripTrailingComment(line)
	fields := strings.Fields(withoutComment)
	if n >= len(fields) {
		return ""
	}
	// Walk forward skipping the first n fields to find where the (n+1)th
	// field starts, even if its token value repeats earlier in the line.
	pos := 0
	for i := 0; i < n; i++ {
		rel := strings.Index(withoutComment[pos:], fields[i])
		pos += rel + len(fields[i])
	}
	rel := strings.Index(withoutComment[pos:], fields[n])
	idx := pos + rel
	return strings.TrimRight(withoutComment[idx:], " \t\r")
}
