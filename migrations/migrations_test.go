package migrations_test

import (
	"strings"
	"testing"

	"github.com/jmehdipour/monozip/migrations"
	"github.com/stretchr/testify/require"
)

func TestMySQLStatements(t *testing.T) {
	stmts, err := migrations.Statements(migrations.MySQL, "mysql")
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	require.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS clients"))
	require.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE IF NOT EXISTS outbox"))
	for _, s := range stmts {
		require.NotContains(t, s, "--")
	}
}

func TestClickHouseStatements(t *testing.T) {
	stmts, err := migrations.Statements(migrations.ClickHouse, "clickhouse")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	require.Contains(t, stmts[0], "client_events")
}
