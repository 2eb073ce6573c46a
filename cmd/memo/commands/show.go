package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

func (c *CLI) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show OUTPUT FINGERPRINT",
		Short: "Print the manifest of a cache entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := c.app.Show(args[0], args[1])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return zerr.Wrap(err, "failed to marshal manifest")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
