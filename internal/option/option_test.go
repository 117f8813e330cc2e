package option

import (
	"testing"

	"github.com/agentic-research/ilfs/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	s, err := Parse("ro,init=missing,type=d")
	require.NoError(t, err)
	assert.Equal(t, "1", s[Ro])
	assert.Equal(t, "missing", s[Init])
	assert.Equal(t, "d", s[Type])
}

func TestParseRwAlias(t *testing.T) {
	s, err := Parse("rw")
	require.NoError(t, err)
	assert.Equal(t, "0", s[Ro])
	_, hasRw := s[Name("rw")]
	assert.False(t, hasRw)
}

func TestParseUnknownOption(t *testing.T) {
	_, err := Parse("bogus=1")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnknownOption, kind)
}

func TestParseInvalidValue(t *testing.T) {
	_, err := Parse("init=sometimes")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidOptionValue, kind)
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestResolveDefaults(t *testing.T) {
	v, err := Resolve(Ro, Scopes{})
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	v, err = Resolve(Init, Scopes{})
	require.NoError(t, err)
	assert.Equal(t, InitNever, v)
}

func TestResolveRoGlobalOverridesPath(t *testing.T) {
	scopes := Scopes{
		Global: Set{Ro: "1"},
		Path:   Set{Ro: "0"}, // rw at path scope
	}
	v, err := Resolve(Ro, scopes)
	require.NoError(t, err)
	assert.Equal(t, "1", v, "global -o ro must override a path-scope rw")
}

func TestResolveNonRoPathWinsOverTreeOverGlobal(t *testing.T) {
	scopes := Scopes{
		Global: Set{Init: InitMissing},
		Tree:   Set{Init: InitSkip},
		Path:   Set{Init: InitAlways},
	}
	v, err := Resolve(Init, scopes)
	require.NoError(t, err)
	assert.Equal(t, InitAlways, v)

	scopes2 := Scopes{
		Global: Set{Init: InitMissing},
		Tree:   Set{Init: InitSkip},
	}
	v, err = Resolve(Init, scopes2)
	require.NoError(t, err)
	assert.Equal(t, InitSkip, v)
}

func TestResolveUnknownOption(t *testing.T) {
	_, err := Resolve(Name("bogus"), Scopes{})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnknownOption, kind)
}
