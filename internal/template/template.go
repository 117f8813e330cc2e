// Package template implements the line-preserving ${NAME} environment
// variable substitutor: a two-state character scanner (literal / after-$)
// with a sub-state for {...} name collection.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/agentic-research/ilfs/internal/errs"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Lookup resolves a variable name to its value and whether it is defined.
// os.LookupEnv satisfies this signature.
type Lookup func(name string) (string, bool)

// OSLookup resolves variables from the process environment.
func OSLookup(name string) (string, bool) { return os.LookupEnv(name) }

// Substitute expands ${NAME} tokens in input using lookup. \$ escapes to a
// literal "$"; any other backslash is preserved verbatim. An unescaped "$"
// not immediately followed by "{NAME}" is a *template-syntax* error. A
// reference to an undefined variable is a *template-undefined* error.
// Newlines are preserved.
func Substitute(input string, lookup Lookup) (string, error) {
	var out strings.Builder
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes) && runes[i+1] == '$':
			out.WriteRune('$')
			i += 2
		case c == '\\':
			out.WriteRune('\\')
			i++
		case c == '$':
			name, next, err := scanBraceName(runes, i+1)
			if err != nil {
				return "", err
			}
			val, ok := lookup(name)
			if !ok {
				return "", errs.New(errs.KindTemplateUndefined, name, "undefined variable %q", name)
			}
			out.WriteString(val)
			i = next
		default:
			out.WriteRune(c)
			i++
		}
	}
	return out.String(), nil
}

// scanBraceName expects "{NAME}" starting at offset (just past the "$") and
// returns the name and the index just past the closing brace.
func scanBraceName(runes []rune, offset int) (string, int, error) {
	if offset >= len(runes) || runes[offset] != '{' {
		return "", 0, errs.New(errs.KindTemplateSyntax, "", "%q", syntaxContext(runes, offset))
	}
	end := -1
	for j := offset + 1; j < len(runes); j++ {
		if runes[j] == '}' {
			end = j
			break
		}
		if runes[j] == '\n' {
			break // a newline inside "{...}" is a syntax error, not a valid name
		}
	}
	if end < 0 {
		return "", 0, errs.New(errs.KindTemplateSyntax, "", "unterminated ${...")
	}
	name := string(runes[offset+1 : end])
	if !nameRE.MatchString(name) {
		return "", 0, errs.New(errs.KindTemplateSyntax, name, "invalid variable name %q", name)
	}
	return name, end + 1, nil
}

func syntaxContext(runes []rune, offset int) string {
	if offset >= len(runes) {
		return "$ at end of input"
	}
	return fmt.Sprintf("$%c", runes[offset])
}

// SubstituteStream runs Substitute over an entire byte stream, as used by
// the Config Loader as a whole-stream preprocessor before tokenization. A
// single trailing newline is emitted if the input was non-empty and did not
// already end in one that survives substitution verbatim (substitution
// itself never adds or removes newlines beyond what the input contained;
// this only normalizes a missing final newline the way line-oriented config
// tables expect).
func SubstituteStream(input []byte, lookup Lookup) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	out, err := Substitute(string(input), lookup)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}
