package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("add client: %w", apperr.Conflict("name taken"))

	require.True(t, errors.Is(err, apperr.ErrConflict))
	require.False(t, errors.Is(err, apperr.ErrNotFound))
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.Equal(t, "name taken", apperr.Message(err, "fallback"))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := apperr.Unavailable("store unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, apperr.ErrUnavailable)
	require.Equal(t, "store unavailable: dial tcp: connection refused", err.Error())
}

func TestExpected(t *testing.T) {
	require.True(t, apperr.Expected(apperr.Validation("x")))
	require.True(t, apperr.Expected(apperr.Auth("x")))
	require.False(t, apperr.Expected(apperr.Archive("x", nil)))
	require.False(t, apperr.Expected(errors.New("plain")))
	require.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain")))
	require.Equal(t, "fallback", apperr.Message(errors.New("plain"), "fallback"))
}
