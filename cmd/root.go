package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qda",
	Short: "qualitative coding tool",
	Example: `qda context set -p <project-id> -s <source-id>
qda source create -n <name> -f <file>
qda codebook create -n <name>
qda code create -b <codebook-id> -n <name> --parent <code-id>
qda code tree
qda selection add -c <code-id> --start 0 --end 10
qda segments --gaps
qda at -o <offset>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(codebookCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(selectionCmd)
	rootCmd.AddCommand(segmentsCmd())
	rootCmd.AddCommand(codesAtCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
