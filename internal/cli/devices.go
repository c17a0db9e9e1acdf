package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/hub"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/config"
)

// DeviceSource is the subset of the hub client the devices command uses.
type DeviceSource interface {
	FetchSnapshot(ctx context.Context) (device.Snapshot, error)
	GetDevice(ctx context.Context, deviceID string) (device.SnapshotEntry, error)
}

// newDeviceSource builds the remote client from configuration.
var newDeviceSource = func(cfg *config.Config) (DeviceSource, error) {
	client, err := hub.NewClient(hub.Config{
		AppURL:      cfg.Hub.AppURL,
		AppID:       cfg.Hub.AppID,
		AccessToken: cfg.Hub.AccessToken,
		Timeout:     cfg.GetHubTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DevicesOptions holds flags for the devices command.
type DevicesOptions struct {
	DeviceID string
	Timeout  time.Duration
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevicesOptions{}

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the hub's devices",
		Long: `Fetch the device list from the hub's remote API and print it.

With --id, query a single device and print its capabilities and
attribute values instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevices(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DeviceID, "id", "", "query a single device by id")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")

	return cmd
}

func runDevices(cmd *cobra.Command, rootOpts *RootOptions, opts *DevicesOptions) error {
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	source, err := newDeviceSource(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "creating hub client", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	out := cmd.OutOrStdout()

	if opts.DeviceID != "" {
		entry, err := source.GetDevice(ctx, opts.DeviceID)
		if err != nil {
			return err
		}
		if rootOpts.Format == "json" {
			return writeJSON(out, entry)
		}
		return writeDevice(out, entry)
	}

	snap, err := source.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	if rootOpts.Format == "json" {
		return writeJSON(out, snap)
	}
	return writeDeviceTable(out, snap)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDeviceTable(w io.Writer, snap device.Snapshot) error {
	devices := make([]device.SnapshotEntry, len(snap.Devices))
	copy(devices, snap.Devices)
	sort.Slice(devices, func(i, j int) bool {
		return strings.ToLower(devices[i].Name) < strings.ToLower(devices[j].Name)
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCAPABILITIES")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.DeviceID, d.Name, strings.Join(d.Capabilities, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d devices", len(devices))
	if err != nil {
		return err
	}
	if snap.Location.LocalAddress != "" {
		_, err = fmt.Fprintf(w, ", hub at %s (local commands %t)", snap.Location.LocalAddress, snap.Location.LocalCommands)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}

func writeDevice(w io.Writer, entry device.SnapshotEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", entry.DeviceID)
	fmt.Fprintf(tw, "Name\t%s\n", entry.Name)
	fmt.Fprintf(tw, "Capabilities\t%s\n", strings.Join(entry.Capabilities, ", "))

	names := make([]string, 0, len(entry.Attributes))
	for name := range entry.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%v\n", name, entry.Attributes[name])
	}
	return tw.Flush()
}
