package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions, serve ServeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Long: `Run the bridge: refresh devices from the hub on an interval, accept
pushed changes on the listener, and publish every device on MQTT.

Runs until interrupted. A restart request from the hub exits with status 1
so a process supervisor can start it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := serve(cmd.Context(), rootOpts.ConfigPath)
			if errors.Is(err, ErrRestartRequested) {
				return WrapExitError(ExitFailure, "restarting", err)
			}
			return err
		},
	}
}
