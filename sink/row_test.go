package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_Int64(t *testing.T) {
	row := Row{int64(50), float64(3), " 12 ", 2.5, "x", nil}

	t.Run("accepts integers, integral reals and decimal text", func(t *testing.T) {
		for i, want := range []int64{50, 3, 12} {
			got, err := row.Int64(i)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects everything else", func(t *testing.T) {
		for _, i := range []int{3, 4, 5} {
			_, err := row.Int64(i)
			assert.ErrorIs(t, err, ErrInvalidArgument, "column %d", i)
		}
	})

	t.Run("out of range column", func(t *testing.T) {
		_, err := row.Int64(6)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = row.Int64(-1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestRow_String(t *testing.T) {
	row := Row{"abc", []byte("def"), int64(1), nil}

	s, err := row.String(0)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	s, err = row.String(1)
	require.NoError(t, err)
	assert.Equal(t, "def", s)

	_, err = row.String(2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorContains(t, err, "INTEGER")

	_, err = row.String(3)
	assert.ErrorContains(t, err, "NULL")
}

func TestRow_Bytes(t *testing.T) {
	row := Row{[]byte{0, 1}, "ab", 1.5}

	b, err := row.Bytes(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1}, b)

	b, err = row.Bytes(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)

	_, err = row.Bytes(2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorContains(t, err, "REAL")
}

func TestDefinition_Schema(t *testing.T) {
	d := Definition{Name: "timer", Columns: "n_millis INTEGER, insert_table VARCHAR, value ANY"}
	assert.Equal(t, "CREATE TABLE x(n_millis INTEGER, insert_table VARCHAR, value ANY)", d.Schema())
}
