package sink

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one row of column values as delivered by SQLite: int64, float64,
// string, []byte or nil.
type Row []any

// Value returns column i.
func (r Row) Value(i int) (any, error) {
	if i < 0 || i >= len(r) {
		return nil, fmt.Errorf("%w: column %d out of range (row has %d)", ErrInvalidArgument, i, len(r))
	}

	return r[i], nil
}

// Int64 returns column i as an integer. Integral floats and decimal text are
// accepted.
func (r Row) Int64(i int) (int64, error) {
	v, err := r.Value(i)
	if err != nil {
		return 0, err
	}

	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}

	return 0, fmt.Errorf("%w: column %d must be an integer, got %s", ErrInvalidArgument, i, describe(v))
}

// String returns column i as text. Blobs are converted as is.
func (r Row) String(i int) (string, error) {
	v, err := r.Value(i)
	if err != nil {
		return "", err
	}

	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}

	return "", fmt.Errorf("%w: column %d must be text, got %s", ErrInvalidArgument, i, describe(v))
}

// Bytes returns column i as a byte slice. Text is accepted.
func (r Row) Bytes(i int) ([]byte, error) {
	v, err := r.Value(i)
	if err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}

	return nil, fmt.Errorf("%w: column %d must be a blob or text, got %s", ErrInvalidArgument, i, describe(v))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case int64:
		return "INTEGER"
	case float64:
		return "REAL"
	case string:
		return "TEXT"
	case []byte:
		return "BLOB"
	default:
		return fmt.Sprintf("%T", v)
	}
}
