package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.trai.ch/memo/internal/ui/style"
)

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List committed cache entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.List(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(w, style.Muted.Render("no cache entries"))
				return nil
			}

			t := table.New().
				Border(lipgloss.HiddenBorder()).
				BorderTop(false).
				BorderBottom(false).
				Headers("OUTPUT", "FINGERPRINT", "TASK", "SIZE", "CREATED").
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return style.Header
					}
					return lipgloss.NewStyle()
				})

			var total int64
			for _, e := range entries {
				t.Row(
					e.Output,
					e.Fingerprint.Short(),
					e.TaskName,
					formatSize(e.Size),
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				)
				total += e.Size
			}

			_, _ = fmt.Fprintln(w, t.Render())
			_, _ = fmt.Fprintln(w, style.Muted.Render(fmt.Sprintf("%d entries, %s", len(entries), formatSize(total))))
			return nil
		},
	}
}
