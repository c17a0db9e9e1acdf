package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is used when neither --config nor HUBLINK_CONFIG is set.
const DefaultConfigPath = "configs/config.yaml"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// ServeFunc runs the bridge until ctx is cancelled.
type ServeFunc func(ctx context.Context, configPath string) error

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string
}

// NewRootCommand creates the hublink command tree. serve is invoked by the
// serve subcommand.
func NewRootCommand(build BuildInfo, serve ServeFunc) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hublink",
		Short: "HubLink - SmartThings device bridge",
		Long: `HubLink mirrors a SmartThings hub's devices into a local cache,
keeps it in sync through periodic refreshes and pushed attribute changes,
and republishes every device on MQTT and a WebSocket event stream.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", configPathFromEnv(), "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts, serve))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts, build))

	return cmd
}

// configPathFromEnv returns HUBLINK_CONFIG if set, otherwise the default path.
func configPathFromEnv() string {
	if path := os.Getenv("HUBLINK_CONFIG"); path != "" {
		return path
	}
	return DefaultConfigPath
}
