package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-bridge/application/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [type]",
		Short: "Print the JSON Schema of a wire type",
		Long: `Print the JSON Schema of a wire type.

Without an argument the names of all wire types are listed.

Example:
  reglet-bridge schema invocation-request`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := schema.WireTypes()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if rootOpts.Format == "json" {
					return writeJSON(out, catalog.Names())
				}
				for _, name := range catalog.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			raw, ok := catalog.Schema(args[0])
			if !ok {
				return WrapExitError(ExitCommandError, fmt.Sprintf("unknown wire type %q", args[0]), nil)
			}
			_, err = fmt.Fprintln(out, string(raw))
			return err
		},
	}
	return cmd
}
