package sqlite

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// quietLogger discards everything.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestConn creates an empty database in a temp dir and connects to it.
func openTestConn(t *testing.T, opts ...Option) (*Database, *Conn) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db := New(path, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, db.Create(ctx, false))
	c, err := db.Connect(ctx, false)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return db, c
}

func mustExec(t *testing.T, c *Conn, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := c.Exec(context.Background(), s)
		require.NoError(t, err, s)
	}
}

func countRows(t *testing.T, c *Conn, table string) int64 {
	t.Helper()
	row, err := c.QueryRow(context.Background(), "SELECT count(*) AS n FROM "+EscapeIdentifier(table))
	require.NoError(t, err)
	n, ok := row.Int64("n")
	require.True(t, ok)
	return n
}

// statementLog records the statements logged at debug level.
type statementLog struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (l *statementLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *statementLog) statements(t *testing.T) []string {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(l.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec struct {
			Statement string `json:"statement"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec.Statement != "" {
			out = append(out, rec.Statement)
		}
	}
	return out
}

func debugLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
