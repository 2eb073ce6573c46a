package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/memo/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run --output DIR (--code-id ID | --code-path PATH...) [--input k=v...] -- command [args...]",
		Short: "Restore a command's output from the cache, or run it and cache what it writes",
		Long: "Runs the command in a private directory exported as MEMO_OUTPUT_DIR and caches\n" +
			"everything it writes there under the fingerprint of the code identity and inputs.\n" +
			"Input values are YAML: n=4 is an int, n='4' a string.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			output, _ := cmd.Flags().GetString("output")
			task, _ := cmd.Flags().GetString("task")
			codeID, _ := cmd.Flags().GetString("code-id")
			codePaths, _ := cmd.Flags().GetStringArray("code-path")
			inputs, _ := cmd.Flags().GetStringArray("input")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")

			_, err := c.app.Run(cmd.Context(), app.RunOptions{
				Output:      output,
				Task:        task,
				CodeID:      codeID,
				CodePaths:   codePaths,
				Inputs:      inputs,
				Command:     args,
				MetricsFile: metricsFile,
				Stdout:      cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output location, relative to the cache root")
	cmd.Flags().StringP("task", "t", "", "Task name, used by the disabled list in memo.yaml")
	cmd.Flags().String("code-id", "", "Opaque code identity, such as a version or build ID")
	cmd.Flags().StringArray("code-path", nil, "File or directory whose content is the code identity")
	cmd.Flags().StringArrayP("input", "i", nil, "Input as key=value, repeatable")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsMutuallyExclusive("code-id", "code-path")
	return cmd
}
