package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configDir      = "./.tmp"
	configFileName = "qda.yml"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context holds the project and source used when the flags are omitted.
type Context struct {
	ProjectID string
	SourceID  string
}

// saves the context info to ./.tmp/qda.yml
func setContextCommand() *cobra.Command {
	var projectID string
	var sourceID string

	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" && sourceID == "" {
				color.Red("missing: --project or --source")
				return errMissingFlags
			}

			current := readContext()
			if projectID != "" {
				current.ProjectID = projectID
			}
			if sourceID != "" {
				current.SourceID = sourceID
			}
			if err := writeContext(current); err != nil {
				return err
			}

			color.Green("context saved")
			return nil
		},
	}

	command.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	command.Flags().StringVarP(&sourceID, "source", "s", "", "source id")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			current := readContext()
			cmd.Printf("project: %s\nsource:  %s\n", current.ProjectID, current.SourceID)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := os.Remove(filepath.Join(configDir, configFileName))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			color.Green("context cleared")
			return nil
		},
	}

	return command
}

func writeContext(context Context) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("context.project_id", context.ProjectID)
	v.Set("context.source_id", context.SourceID)

	return v.WriteConfigAs(filepath.Join(configDir, configFileName))
}

func readContext() Context {
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, configFileName))
	if err := v.ReadInConfig(); err != nil {
		return Context{}
	}

	return Context{
		ProjectID: v.GetString("context.project_id"),
		SourceID:  v.GetString("context.source_id"),
	}
}
