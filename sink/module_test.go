package sink

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-sqlio/engine"
	"github.com/cyberinferno/go-sqlio/logger"
)

// recorder keeps every inserted row and enumerates them back.
type recorder struct {
	mu   sync.Mutex
	rows []Row
	gets int
}

func (r *recorder) OnInsert(row Row) error {
	label, err := row.String(0)
	if err != nil {
		return err
	}
	if label == "fail" {
		return errors.New("refused")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, append(Row(nil), row...))
	return nil
}

func (r *recorder) Get() ([]Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	return append([]Row(nil), r.rows...), nil
}

func (r *recorder) snapshot() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Row(nil), r.rows...)
}

// pushOnly has no pull side.
type pushOnly struct{ inserts int }

func (p *pushOnly) OnInsert(Row) error {
	p.inserts++
	return nil
}

// openSinkDB opens a database with the given definitions installed.
func openSinkDB(t *testing.T, defs ...Definition) *sql.DB {
	t.Helper()
	opts := engine.DefaultOptions(filepath.Join(t.TempDir(), "sink.db"))
	opts.Hook = func(h engine.Handle, conn *sqlite3.SQLiteConn) error {
		return Install(conn, Context{Handle: h, Logger: logger.Nop()}, defs...)
	}
	s, err := engine.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.DB()
}

func TestModule_InsertAndSelect(t *testing.T) {
	rec := &recorder{}
	db := openSinkDB(t, Definition{
		Name:    "recorder",
		Columns: "label VARCHAR, n INTEGER, payload BLOB",
		New:     func(Context) Sink { return rec },
	})

	t.Run("insert triggers the side effect", func(t *testing.T) {
		_, err := db.Exec("INSERT INTO recorder VALUES ('a', 1, x'0001')")
		require.NoError(t, err)
		_, err = db.Exec("INSERT INTO recorder (label, n, payload) VALUES (?, ?, ?)", "b", 2, nil)
		require.NoError(t, err)

		got := rec.snapshot()
		require.Len(t, got, 2)
		assert.Equal(t, Row{"a", int64(1), []byte{0, 1}}, got[0])
		assert.Equal(t, Row{"b", int64(2), nil}, got[1])
	})

	t.Run("select enumerates a fresh snapshot in order", func(t *testing.T) {
		rows, err := db.Query("SELECT rowid, label, n FROM recorder")
		require.NoError(t, err)
		defer rows.Close()

		var (
			ids    []int64
			labels []string
		)
		for rows.Next() {
			var (
				id    int64
				label string
				n     int64
			)
			require.NoError(t, rows.Scan(&id, &label, &n))
			ids = append(ids, id)
			labels = append(labels, label)
		}
		require.NoError(t, rows.Err())

		assert.Equal(t, []int64{0, 1}, ids)
		assert.Equal(t, []string{"a", "b"}, labels)
	})

	t.Run("insert errors fail the statement", func(t *testing.T) {
		_, err := db.Exec("INSERT INTO recorder VALUES ('fail', 0, NULL)")
		assert.ErrorContains(t, err, "refused")

		_, err = db.Exec("INSERT INTO recorder VALUES (1, 0, NULL)")
		assert.ErrorContains(t, err, "must be text")

		assert.Len(t, rec.snapshot(), 2)
	})

	t.Run("update and delete are rejected and change nothing", func(t *testing.T) {
		_, err := db.Exec("UPDATE recorder SET label = 'z'")
		assert.ErrorContains(t, err, "can't UPDATE recorder")

		_, err = db.Exec("DELETE FROM recorder")
		assert.ErrorContains(t, err, "can't DELETE FROM recorder")

		got := rec.snapshot()
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0][0])
	})
}

func TestModule_PushOnly(t *testing.T) {
	p := &pushOnly{}
	db := openSinkDB(t, Definition{
		Name:    "push_only",
		Columns: "v ANY",
		New:     func(Context) Sink { return p },
	})

	_, err := db.Exec("INSERT INTO push_only VALUES (1)")
	require.NoError(t, err)
	assert.Equal(t, 1, p.inserts)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM push_only").Scan(&n))
	assert.Equal(t, 0, n, "sinks without Get enumerate as empty")

	t.Run("update and delete visit no rows and change nothing", func(t *testing.T) {
		for _, stmt := range []string{
			"UPDATE push_only SET v = 2",
			"DELETE FROM push_only",
		} {
			res, err := db.Exec(stmt)
			require.NoError(t, err, stmt)

			affected, err := res.RowsAffected()
			require.NoError(t, err)
			assert.Zero(t, affected, stmt)
		}
		assert.Equal(t, 1, p.inserts)
	})
}

func TestModule_ReceivesContext(t *testing.T) {
	var got Context
	db := openSinkDB(t, Definition{
		Name:    "ctx_probe",
		Columns: "v ANY",
		New: func(ctx Context) Sink {
			got = ctx
			return &pushOnly{}
		},
	})

	_, err := db.Exec("INSERT INTO ctx_probe VALUES (1)")
	require.NoError(t, err)
	assert.True(t, got.Handle.Valid())
	assert.NotNil(t, got.Logger)
}

func TestTable_DirectCalls(t *testing.T) {
	tbl := newTable("direct", &pushOnly{})

	err := tbl.Update(int64(0), []any{int64(0), "x"})
	assert.ErrorIs(t, err, ErrUnsupported)

	err = tbl.Delete(int64(0))
	assert.ErrorIs(t, err, ErrUnsupported)

	res, err := tbl.BestIndex(make([]sqlite3.InfoConstraint, 3), nil)
	require.NoError(t, err)
	assert.Len(t, res.Used, 3)

	cur, err := tbl.Open()
	require.NoError(t, err)
	assert.True(t, cur.EOF())
}
