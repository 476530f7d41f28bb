package util_test

import (
	"testing"
	"time"

	"github.com/jmehdipour/monozip/internal/util"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	require.Equal(t, "acmecorp", util.Slug("Acme Corp."))
	require.Equal(t, "amさま", util.Slug("AMさま"))
	require.Equal(t, "", util.Slug(" -_/ "))
}

func TestDeriveKey(t *testing.T) {
	t.Run("from name", func(t *testing.T) {
		require.Equal(t, "newclient", util.DeriveKey("New Client", "NC", nil))
	})

	t.Run("falls back to prefix then client", func(t *testing.T) {
		require.Equal(t, "ktcssp", util.DeriveKey("***", "KTC_SSP", nil))
		require.Equal(t, "client", util.DeriveKey("***", "__", nil))
	})

	t.Run("numeric suffix on collision", func(t *testing.T) {
		taken := map[string]bool{"acme": true, "acme2": true}
		require.Equal(t, "acme3", util.DeriveKey("ACME", "A", taken))
	})

	t.Run("reserved keys are skipped", func(t *testing.T) {
		require.Equal(t, "custom2", util.DeriveKey("Custom", "C", nil, "custom"))
	})
}

func TestNewIDAt(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := util.NewIDAt(tm)
	require.Len(t, id, 26)

	got, err := util.IDTime(id)
	require.NoError(t, err)
	require.WithinDuration(t, tm, got, time.Millisecond)

	require.NotEqual(t, util.NewID(), util.NewID())
}
