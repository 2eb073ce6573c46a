// Package commands implements the CLI commands for memo.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/memo/internal/app"
	"go.trai.ch/memo/internal/build"
	"go.trai.ch/memo/internal/core/domain"
)

// skipSetupAnnotation marks commands that run without a configured cache.
const skipSetupAnnotation = "memo/skip-setup"

// CLI represents the command line interface for memo.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Setup(opts app.GlobalOptions) error
	Close(ctx context.Context) error
	Run(ctx context.Context, opts app.RunOptions) (bool, error)
	List(ctx context.Context) ([]domain.EntryInfo, error)
	Show(output, fingerprint string) (*domain.Manifest, error)
	Verify(ctx context.Context, output string) ([]app.VerifyResult, error)
	Sweep(ctx context.Context) (*domain.SweepReport, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "memo",
		Short:         "Fingerprint-addressed cache for expensive computations",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to memo.yaml (default: search upwards from the working directory)")
	flags.String("root", "", "Cache root, overrides the config file")
	flags.Bool("json", false, "Write logs as JSON")
	flags.BoolP("verbose", "v", false, "Enable debug logs")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRunE = c.setup
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipSetupAnnotation] != "" {
			return nil
		}
		return c.app.Close(cmd.Context())
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newShowCmd())
	rootCmd.AddCommand(c.newVerifyCmd())
	rootCmd.AddCommand(c.newSweepCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipSetupAnnotation] != "" {
		return nil
	}

	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	root, _ := flags.GetString("root")
	jsonLogs, _ := flags.GetBool("json")
	verbose, _ := flags.GetBool("verbose")

	return c.app.Setup(app.GlobalOptions{
		ConfigPath: configPath,
		Root:       root,
		JSON:       jsonLogs,
		Verbose:    verbose,
	})
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
