package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions, build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"version": build.Version,
					"commit":  build.Commit,
					"date":    build.Date,
					"go":      runtime.Version(),
				})
			}
			_, err := fmt.Fprintf(out, "hublink %s (commit %s, built %s, %s)\n",
				build.Version, build.Commit, build.Date, runtime.Version())
			return err
		},
	}
}
