package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-sqlio/extension"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sqlio version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlio %s\n", extension.Version)
		},
	}
}
