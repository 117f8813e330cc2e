// Package option implements the four-scope option model: a fixed schema
// (ro, init, type), per-scope storage (defaults, global, tree, path), and
// precedence-based resolution.
package option

import (
	"regexp"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
)

// Name identifies one of the three schema options.
type Name string

const (
	Ro   Name = "ro"
	Init Name = "init"
	Type Name = "type"
)

// InitValue enumerates the legal values of the init option.
const (
	InitNever   = "never"
	InitSkip    = "skip"
	InitMissing = "missing"
	InitAlways  = "always"
)

// TypeValue enumerates the legal values of the type option.
const (
	TypeDir    = "d"
	TypeFile   = "f"
	TypeEither = "e"
)

var valueRE = map[Name]*regexp.Regexp{
	Ro:   regexp.MustCompile(`^[01]$`),
	Init: regexp.MustCompile(`^(never|skip|missing|always)$`),
	Type: regexp.MustCompile(`^[dfe]$`),
}

// Defaults is the fixed default scope.
var Defaults = map[Name]string{
	Ro:   "0",
	Init: InitNever,
	Type: TypeEither,
}

// Set is one scope's option values. A nil/zero Set has no entries; any
// scope may leave an option unset.
type Set map[Name]string

// Parse splits optstr on "," and each item on "=", validating against the
// closed schema. A value-less option must be a schema name (ro, rw); "=value"
// must match the value regex for that option. The "rw" alias expands to
// ro=0 at parse time so Set only ever holds canonical names.
func Parse(optstr string) (Set, error) {
	s := Set{}
	if strings.TrimSpace(optstr) == "" {
		return s, nil
	}
	for _, item := range strings.Split(optstr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, value, hasValue := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		switch name {
		case "rw":
			if hasValue {
				return nil, errs.New(errs.KindInvalidOptionValue, item, "rw takes no value")
			}
			s[Ro] = "0"
			continue
		case string(Ro):
			if !hasValue {
				s[Ro] = "1"
				continue
			}
		case string(Init), string(Type):
			if !hasValue {
				return nil, errs.New(errs.KindInvalidOptionValue, item, "%s requires a value", name)
			}
		default:
			return nil, errs.New(errs.KindUnknownOption, item, "unknown option %q", name)
		}
		n := Name(name)
		re, ok := valueRE[n]
		if !ok {
			return nil, errs.New(errs.KindUnknownOption, item, "unknown option %q", name)
		}
		value = strings.TrimSpace(value)
		if !re.MatchString(value) {
			return nil, errs.New(errs.KindInvalidOptionValue, item, "invalid value %q for %s", value, name)
		}
		s[n] = value
	}
	return s, nil
}

// Scopes bundles the layers consulted by Resolve beyond the fixed
// defaults: global, tree, path. Resolve orders them per-option.
type Scopes struct {
	Global Set
	Tree   Set
	Path   Set
}

// Resolve returns the effective value of name for a Path given its scope
// layers:
//
//   - ro:            defaults -> path -> tree -> global   (global wins)
//   - everything else: defaults -> global -> tree -> path (path wins)
//
// The rightmost scope in the applicable order that has the key supplies the
// value; if none do, the schema default applies.
func Resolve(name Name, scopes Scopes) (string, error) {
	def, ok := Defaults[name]
	if !ok {
		return "", errs.New(errs.KindUnknownOption, string(name), "unknown option %q", name)
	}
	var order []Set
	if name == Ro {
		order = []Set{scopes.Path, scopes.Tree, scopes.Global}
	} else {
		order = []Set{scopes.Global, scopes.Tree, scopes.Path}
	}
	value := def
	for _, s := range order {
		if s == nil {
			continue
		}
		if v, ok := s[name]; ok {
			value = v
		}
	}
	return value, nil
}
