package cli

import (
	"database/sql"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>...",
		Short: "Run SQL statements and print their rows",
		Long: `Run each argument as one SQL statement, in order, and print result
rows tab separated with a header line.

Example:
  sqlio exec --db ./events.db "SELECT sqlio_version()"
  sqlio exec --db ./events.db "INSERT INTO write_to_file VALUES ('hi', '/tmp/hi', 'write')"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ext, log, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer func() { _ = log.Close() }()
			defer func() { _ = ext.Close() }()

			for i, stmt := range args {
				if err := execStatement(cmd, ext.DB(), stmt); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}

			return nil
		},
	}
}

func execStatement(cmd *cobra.Command, db *sql.DB, stmt string) error {
	rows, err := db.QueryContext(cmd.Context(), stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		for rows.Next() {
		}
		return rows.Err()
	}

	return printRows(cmd.OutOrStdout(), cols, rows)
}

func printRows(w io.Writer, cols []string, rows *sql.Rows) error {
	fmt.Fprintln(w, strings.Join(cols, "\t"))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	return rows.Err()
}

// formatValue renders a column value; non-UTF-8 blobs use SQL hex literal
// syntax.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return fmt.Sprintf("x'%x'", x)
	default:
		return fmt.Sprint(x)
	}
}
