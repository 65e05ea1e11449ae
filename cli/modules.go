package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-sqlio/extension"
)

// NewModulesCommand creates the modules command.
func NewModulesCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the SQL functions and sink tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeModules(cmd.OutOrStdout())
		},
	}
}

func writeModules(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "functions:"); err != nil {
		return err
	}
	for _, f := range extension.Functions() {
		line := "  " + f.Signature
		if f.Pure {
			line += " [deterministic]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "sinks:"); err != nil {
		return err
	}
	for _, d := range extension.Sinks(nil) {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", d.Name, d.Schema()); err != nil {
			return err
		}
	}

	return nil
}
