package password_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/password"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := password.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestForClient(t *testing.T) {
	c := model.ClientRecord{Key: "am", Name: "AM", Prefix: "AM", SuffixRule: model.DefaultSuffixRule}

	got, err := password.ForClient(c, date(t, "2024-03-07"))
	require.NoError(t, err)
	require.Equal(t, "AM0307", got)
}

func TestForClientIgnoresRuleText(t *testing.T) {
	c := model.ClientRecord{Prefix: "KTC_SSP", SuffixRule: "year only, please"}

	got, err := password.ForClient(c, date(t, "2025-12-31"))
	require.NoError(t, err)
	require.Equal(t, "KTC_SSP1231", got)
}

func TestForClientEmptyPrefix(t *testing.T) {
	_, err := password.ForClient(model.ClientRecord{Prefix: "  "}, time.Now())
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFreeText(t *testing.T) {
	d := date(t, "2024-03-07")

	t.Run("with date", func(t *testing.T) {
		got, err := password.FreeText("  hello ", &d)
		require.NoError(t, err)
		require.Equal(t, "hello20240307", got)
	})

	t.Run("without date", func(t *testing.T) {
		got, err := password.FreeText("hello", nil)
		require.NoError(t, err)
		require.Equal(t, "hello", got)
	})

	t.Run("blank", func(t *testing.T) {
		_, err := password.FreeText(" \t", &d)
		require.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestFreeTextDeterministic(t *testing.T) {
	inputs := []string{"a", "Project-X", "日本語", "with space"}
	days := []string{"2000-01-01", "2024-02-29", "2099-12-31"}

	for _, in := range inputs {
		for _, s := range days {
			d := date(t, s)
			first, err := password.FreeText(in, &d)
			require.NoError(t, err)
			second, err := password.FreeText(in, &d)
			require.NoError(t, err)

			require.Equal(t, first, second)
			require.Len(t, first, len(in)+8)
			require.Equal(t, in+password.CompactDate(d), first)
		}
	}
}

func TestGenerate(t *testing.T) {
	now := date(t, "2024-11-05")
	c := model.ClientRecord{Prefix: "AMS_KTC"}

	got, err := password.Generate(model.ClientTarget(c), nil, now)
	require.NoError(t, err)
	require.Equal(t, "AMS_KTC1105", got)

	d := date(t, "2024-03-07")
	got, err = password.Generate(model.ClientTarget(c), &d, now)
	require.NoError(t, err)
	require.Equal(t, "AMS_KTC0307", got)

	got, err = password.Generate(model.FreeTextTarget("abc"), nil, now)
	require.NoError(t, err)
	require.Equal(t, "abc", got)

	_, err = password.Generate(model.Target{Kind: model.TargetClient}, nil, now)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := password.ParseDate("2024-03-07")
	require.NoError(t, err)
	require.Equal(t, 2024, d.Year())
	require.Equal(t, time.March, d.Month())
	require.Equal(t, 7, d.Day())

	for _, bad := range []string{"", "2024/03/07", "07-03-2024", "2024-13-01"} {
		_, err := password.ParseDate(bad)
		require.ErrorIs(t, err, apperr.ErrValidation, bad)
	}
}
