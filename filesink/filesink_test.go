package filesink

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-sqlio/engine"
	"github.com/cyberinferno/go-sqlio/sink"
)

func openFileDB(t *testing.T) *sql.DB {
	t.Helper()
	opts := engine.DefaultOptions(filepath.Join(t.TempDir(), "files.db"))
	opts.Hook = func(h engine.Handle, conn *sqlite3.SQLiteConn) error {
		return sink.Install(conn, sink.Context{Handle: h}, Definition())
	}
	s, err := engine.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.DB()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestParseMode(t *testing.T) {
	t.Run("accepts write and append", func(t *testing.T) {
		m, err := ParseMode("write")
		require.NoError(t, err)
		assert.Equal(t, ModeWrite, m)

		m, err = ParseMode("append")
		require.NoError(t, err)
		assert.Equal(t, ModeAppend, m)
	})

	t.Run("rejects anything else", func(t *testing.T) {
		for _, s := range []string{"", "Write", "truncate", "a"} {
			_, err := ParseMode(s)
			assert.ErrorIs(t, err, sink.ErrInvalidArgument, s)
		}
	})
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("write creates then truncates", func(t *testing.T) {
		path := filepath.Join(dir, "w.txt")
		require.NoError(t, WriteFile(path, []byte("first payload"), ModeWrite))
		require.NoError(t, WriteFile(path, []byte("second"), ModeWrite))
		assert.Equal(t, "second", readFile(t, path))
	})

	t.Run("append creates then appends", func(t *testing.T) {
		path := filepath.Join(dir, "a.txt")
		require.NoError(t, WriteFile(path, []byte("a"), ModeAppend))
		require.NoError(t, WriteFile(path, []byte("b"), ModeAppend))
		assert.Equal(t, "ab", readFile(t, path))
	})

	t.Run("missing parent directory fails", func(t *testing.T) {
		err := WriteFile(filepath.Join(dir, "nope", "x.txt"), []byte("x"), ModeWrite)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestWriter_SQL(t *testing.T) {
	db := openFileDB(t)
	dir := t.TempDir()

	t.Run("append mode accumulates rows", func(t *testing.T) {
		path := filepath.Join(dir, "append.txt")
		_, err := db.Exec("INSERT INTO write_to_file VALUES ('a', ?, 'append')", path)
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO write_to_file VALUES ('b', ?, 'append')", path)
		require.NoError(t, err)

		assert.Equal(t, "ab", readFile(t, path))
	})

	t.Run("write mode keeps only the last payload", func(t *testing.T) {
		path := filepath.Join(dir, "write.txt")
		_, err := db.Exec("INSERT INTO write_to_file VALUES (?, ?, 'write')", []byte("longer payload"), path)
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO write_to_file VALUES (?, ?, 'write')", []byte{0x00, 0xff}, path)
		require.NoError(t, err)

		assert.Equal(t, string([]byte{0x00, 0xff}), readFile(t, path))
	})

	t.Run("unknown ty fails the insert and writes nothing", func(t *testing.T) {
		path := filepath.Join(dir, "bad.txt")
		_, err := db.Exec("INSERT INTO write_to_file VALUES ('x', ?, 'overwrite')", path)
		assert.ErrorContains(t, err, "either 'write' or 'append'")

		_, statErr := os.Stat(path)
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	})

	t.Run("io errors fail the insert", func(t *testing.T) {
		_, err := db.Exec("INSERT INTO write_to_file VALUES ('x', ?, 'write')", filepath.Join(dir, "missing", "f"))
		assert.Error(t, err)
	})

	t.Run("enumerates as empty", func(t *testing.T) {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM write_to_file").Scan(&n))
		assert.Equal(t, 0, n)
	})
}
