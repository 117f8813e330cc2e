package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, ExitCode(KindPlatform))
	assert.Equal(t, 2, ExitCode(KindTemplateSyntax))
	assert.Equal(t, 1, ExitCode(KindTemplateUndefined))
	assert.Equal(t, 1, ExitCode(KindUsage))
	assert.Equal(t, 70, ExitCode(KindInternal))
}

func TestWrapAndKindOf(t *testing.T) {
	base := fmt.Errorf("boom")
	err := Wrap(KindMountFailed, "/data", base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount-failed")
	assert.Contains(t, err.Error(), "/data")

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMountFailed, kind)

	wrapped := fmt.Errorf("outer: %w", err)
	kind, ok = KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindMountFailed, kind)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindMountFailed, "x", nil))
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}
