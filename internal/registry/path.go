package registry

import (
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/agentic-research/ilfs/internal/option"
)

// Path is one composed path bound to exactly one tree.
type Path struct {
	Path    string // absolute, validated, normalized (no trailing slash except "/")
	Tree    string
	TypeVal string // "d", "f", or "e"
	InitCmd string
	Opts    option.Set
	IsGlob  bool
}

// PathRegistry stores the ordered list of composed Paths; insertion order
// is mount order.
type PathRegistry struct {
	order  []string
	byPath map[string]*Path
}

// NewPathRegistry constructs an empty registry.
func NewPathRegistry() *PathRegistry {
	return &PathRegistry{byPath: map[string]*Path{}}
}

// HasSubpath reports whether any stored path equals p or is a descendant of
// p (p's normalized form with a trailing "/" is a prefix of the stored
// path).
func (r *PathRegistry) HasSubpath(p string) bool {
	withSlash := ensureTrailingSlash(p)
	for _, stored := range r.order {
		if stored == p || strings.HasPrefix(ensureTrailingSlash(stored), withSlash) {
			return true
		}
	}
	return false
}

// wouldShadow reports whether registering candidate would violate the
// no-shadowing invariant: candidate's normalized path with a trailing "/"
// must not start with "P/" for any already-registered P. The reverse
// (registering an ancestor after a descendant) is allowed.
//
// The comparison concatenates a literal "/" onto the stored path rather
// than normalizing it first, so a registered "/" (whose "P/" is "//")
// never shadows every other path — the root has to be registrable before
// anything nested under it.
func (r *PathRegistry) wouldShadow(candidate string) (string, bool) {
	candSlash := ensureTrailingSlash(candidate)
	for _, stored := range r.order {
		if stored == candidate || strings.HasPrefix(candSlash, stored+"/") {
			return stored, true
		}
	}
	return "", false
}

// ParentInRegistry returns the nearest registered ancestor of p, or nil if
// none is registered (including when p itself has no registered ancestor
// and "/" is not registered).
func (r *PathRegistry) ParentInRegistry(p string) *Path {
	best := ""
	var bestPath *Path
	for _, stored := range r.order {
		if stored == p {
			continue
		}
		storedSlash := ensureTrailingSlash(stored)
		if strings.HasPrefix(ensureTrailingSlash(p), storedSlash) && len(storedSlash) > len(best) {
			best = storedSlash
			bestPath = r.byPath[stored]
		}
	}
	return bestPath
}

// Defined reports whether p is registered exactly.
func (r *PathRegistry) Defined(p string) bool {
	_, ok := r.byPath[p]
	return ok
}

// Get returns the registered Path, or nil.
func (r *PathRegistry) Get(p string) *Path {
	return r.byPath[p]
}

// Add appends a new Path. It rejects a duplicate exact path and a path that
// an already registered path shadows (see wouldShadow); callers are
// responsible for checking that the Path's tree exists.
func (r *PathRegistry) Add(p *Path) error {
	if _, exists := r.byPath[p.Path]; exists {
		return errs.New(errs.KindPathShadow, p.Path, "path %q already registered", p.Path)
	}
	if other, shadow := r.wouldShadow(p.Path); shadow {
		return errs.New(errs.KindPathShadow, p.Path, "shadows registered path %q", other)
	}
	r.byPath[p.Path] = p
	r.order = append(r.order, p.Path)
	return nil
}

// Ordered returns all registered Paths in insertion (mount) order.
func (r *PathRegistry) Ordered() []*Path {
	out := make([]*Path, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.byPath[p])
	}
	return out
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
