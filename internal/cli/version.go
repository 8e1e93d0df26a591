package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	sdk "github.com/reglet-dev/reglet-bridge"
	wz "github.com/reglet-dev/reglet-bridge/infrastructure/wazero"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":     sdk.Version,
				"protocol":    sdk.ProtocolVersion,
				"host_module": wz.DefaultModuleName,
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reglet-bridge %s (protocol %s, module %s)\n",
				info["version"], info["protocol"], info["host_module"])
			return nil
		},
	}
}
