// Package filesink implements the write_to_file sink:
//
//	INSERT INTO write_to_file VALUES (x'68690a', '/tmp/out.txt', 'append');
//
// The write happens synchronously inside the INSERT, so I/O errors fail the
// statement.
package filesink

import (
	"fmt"
	"os"

	"github.com/cyberinferno/go-sqlio/logger"
	"github.com/cyberinferno/go-sqlio/sink"
)

// Table is the name of the file sink.
const Table = "write_to_file"

// Mode selects how the target file is opened.
type Mode string

const (
	// ModeWrite creates the file or truncates it.
	ModeWrite Mode = "write"
	// ModeAppend creates the file or appends to it.
	ModeAppend Mode = "append"
)

// ParseMode validates the ty column.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeWrite, ModeAppend:
		return m, nil
	}

	return "", fmt.Errorf("%w: ty must be either 'write' or 'append', got %q", sink.ErrInvalidArgument, s)
}

func (m Mode) flags() int {
	if m == ModeAppend {
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
}

// Definition returns the sink definition for the write_to_file table.
func Definition() sink.Definition {
	return sink.Definition{
		Name:    Table,
		Columns: "contents BLOB, path VARCHAR, ty VARCHAR",
		New: func(ctx sink.Context) sink.Sink {
			return &Writer{log: ctx.Logger}
		},
	}
}

// Writer writes inserted rows to files.
type Writer struct {
	log logger.Logger
}

// OnInsert writes contents to path.
func (w *Writer) OnInsert(row sink.Row) error {
	contents, err := row.Bytes(0)
	if err != nil {
		return fmt.Errorf("contents: %w", err)
	}
	path, err := row.String(1)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	ty, err := row.String(2)
	if err != nil {
		return fmt.Errorf("ty: %w", err)
	}
	mode, err := ParseMode(ty)
	if err != nil {
		return err
	}

	if err := WriteFile(path, contents, mode); err != nil {
		return err
	}

	if w.log != nil {
		w.log.Debug("file written",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "mode", Value: string(mode)},
			logger.Field{Key: "bytes", Value: len(contents)},
		)
	}

	return nil
}

// WriteFile writes all of contents to path, opened according to mode.
//
// Parameters:
//   - path: Target file; parent directories must exist
//   - contents: Bytes to write
//   - mode: ModeWrite or ModeAppend
//
// Returns:
//   - The open, write or close error, if any
func WriteFile(path string, contents []byte, mode Mode) error {
	f, err := os.OpenFile(path, mode.flags(), 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := f.Write(contents); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
