package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/memo/internal/ui/style"
)

func (c *CLI) newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Report leftovers of interrupted commits and runs",
		Long: "Lists orphaned temporary directories, orphaned staging directories and entries\n" +
			"without a completion marker. Nothing is removed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, candidate := range report.Candidates {
				_, _ = fmt.Fprintf(w, "%s %-18s %s\n",
					style.Muted.Render(style.Circle), candidate.Kind, candidate.Path)
			}
			_, _ = fmt.Fprintln(w, style.Muted.Render(
				fmt.Sprintf("%d reclaimable, %d removed", len(report.Candidates), len(report.Removed))))
			return nil
		},
	}
}
