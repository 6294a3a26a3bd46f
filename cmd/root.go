package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "galah",
		Short:         "Command-line client for a Galah grading server",
		Long:          "galah authenticates against a Galah grading server, discovers the commands the server currently supports, and dispatches typed calls to them, downloading any file the server prepares in response.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase verbosity (repeatable)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newCallCmd(app),
		newShellCmd(app),
		newManifestCmd(app),
	)

	return rootCmd
}

func flagVerbosity(cmd *cobra.Command) int {
	count, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return 0
	}
	return count
}
