package taskgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAllocErr(t *testing.T) {
	require.NoError(t, wrapAllocErr(nil))

	base := errors.New("out of memory")
	wrapped := wrapAllocErr(base)
	require.ErrorIs(t, wrapped, ErrAllocationFailed)
	require.ErrorIs(t, wrapped, base)
}

func TestAssertfPanicsOnlyWhenEnabled(t *testing.T) {
	require.NotPanics(t, func() {
		assertf(false, false, "should never panic: assertions disabled")
	})

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic with assertions enabled and a false condition")
		_, ok := r.(*assertionError)
		require.True(t, ok, "expected *assertionError, got %T", r)
	}()
	assertf(true, false, "boom: %d", 42)
}
