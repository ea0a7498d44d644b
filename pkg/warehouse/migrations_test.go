package warehouse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn records executed statements and optionally fails on a substring
// match.
type fakeConn struct {
	execs  []string
	failOn string
}

func (c *fakeConn) Exec(ctx context.Context, query string, args ...any) error {
	if c.failOn != "" && strings.Contains(query, c.failOn) {
		return fmt.Errorf("forced failure")
	}
	c.execs = append(c.execs, query)
	return nil
}

func (c *fakeConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *fakeConn) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *fakeConn) Close() error { return nil }

func TestSplitSQLStatements(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single statement",
			content: "CREATE TABLE t (a Int32);",
			want:    []string{"CREATE TABLE t (a Int32);"},
		},
		{
			name:    "multiple statements",
			content: "CREATE TABLE a (x Int32);\nCREATE TABLE b (y Int32);",
			want:    []string{"CREATE TABLE a (x Int32);", "CREATE TABLE b (y Int32);"},
		},
		{
			name:    "comments and blanks dropped",
			content: "-- a comment\n\nCREATE TABLE t (\n    a Int32\n);\n-- trailing comment\n",
			want:    []string{"CREATE TABLE t (\n    a Int32\n);"},
		},
		{
			name:    "unterminated statement kept",
			content: "CREATE TABLE t (a Int32)",
			want:    []string{"CREATE TABLE t (a Int32)"},
		},
		{
			name:    "empty content",
			content: "-- only comments\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, splitSQLStatements(tt.content))
		})
	}
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates staging before final tables", func(t *testing.T) {
		conn := &fakeConn{}
		require.NoError(t, RunMigrations(context.Background(), testLogger(), conn))
		require.NotEmpty(t, conn.execs)

		var order []string
		for _, stmt := range conn.execs {
			for _, table := range []string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "time"} {
				if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
					order = append(order, table)
				}
			}
		}
		require.Equal(t, []string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "time"}, order)
	})

	t.Run("statement failure aborts with file context", func(t *testing.T) {
		conn := &fakeConn{failOn: "staging_songs"}
		err := RunMigrations(context.Background(), testLogger(), conn)
		require.Error(t, err)
		require.Contains(t, err.Error(), "0001_staging_tables.sql")
	})
}

func TestDerivationStatements(t *testing.T) {
	tables := make(map[string]string, len(derivationStatements))
	for _, stmt := range derivationStatements {
		tables[stmt.name] = stmt.query
	}
	require.Len(t, tables, 5)

	songplays := tables["songplays"]
	require.Contains(t, songplays, "e.song = s.title")
	require.Contains(t, songplays, "e.artist = s.artist_name")
	require.Contains(t, songplays, "e.length = s.duration")
	require.Contains(t, songplays, "INNER JOIN")
	require.Contains(t, songplays, "e.page = 'NextSong'")

	require.Contains(t, tables["users"], "SELECT DISTINCT")
	require.Contains(t, tables["users"], "userId IS NOT NULL")
	require.Contains(t, tables["songs"], "FROM staging_songs")
	require.Contains(t, tables["artists"], "FROM staging_songs")
	require.Contains(t, tables["time"], "(toDayOfWeek(start_time) % 7) + 1")
}
