package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/memo/internal/ui/style"
)

func (c *CLI) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [OUTPUT]",
		Short: "Re-hash cache entries and report those that no longer match their manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var output string
			if len(args) == 1 {
				output = args[0]
			}

			results, err := c.app.Verify(cmd.Context(), output)
			w := cmd.OutOrStdout()
			for _, r := range results {
				name := r.Entry.Output + " " + r.Entry.Fingerprint.Short()
				if r.Err != nil {
					_, _ = fmt.Fprintf(w, "%s %s: %v\n", style.Bad.Render(style.Cross), name, r.Err)
					continue
				}
				_, _ = fmt.Fprintf(w, "%s %s\n", style.Good.Render(style.Check), name)
			}
			return err
		},
	}
}
