package cmd

import (
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "source commands",
}

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "codebook commands",
}

func init() {
	sourceCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	sourceCmd.AddCommand(createSourceCmd())
	sourceCmd.AddCommand(listSourcesCmd())

	codebookCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	codebookCmd.AddCommand(createCodebookCmd())
	codebookCmd.AddCommand(listCodebooksCmd())
}

func createSourceCmd() *cobra.Command {
	var s scope
	var name string
	var file string
	var content string

	var required = []string{"name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a source",
		Long:    `create a source from a text file or from --content`,
		Example: "qda source create -p <project-id> -n <name> -f <file>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, err := s.project()
			if err != nil {
				return err
			}

			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(data)
			}

			return withClient(cmd, func(client *qda.Client) error {
				source, err := client.CreateSource(cmd.Context(), projectID, name, content)
				if err != nil {
					return err
				}

				color.Green("source created: %s", source.ID)
				return nil
			})
		},
	}

	bindProjectFlag(command, &s)
	command.Flags().StringVarP(&name, "name", "n", "", "source name")
	command.Flags().StringVarP(&file, "file", "f", "", "text file to read the content from")
	command.Flags().StringVarP(&content, "content", "c", "", "source content")

	return command
}

func listSourcesCmd() *cobra.Command {
	var s scope

	command := &cobra.Command{
		Use:   "list",
		Short: "list the sources of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := s.project()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				sources, err := client.ListSources(cmd.Context(), projectID)
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Name", "Length", "Created At"})
				for _, source := range sources {
					table.Append([]string{
						source.ID,
						source.Name,
						strconv.Itoa(len([]rune(source.Content))),
						source.CreatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				table.Render()
				return nil
			})
		},
	}

	bindProjectFlag(command, &s)

	return command
}

func createCodebookCmd() *cobra.Command {
	var s scope
	var name string
	var description string

	var required = []string{"name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a codebook",
		Example: "qda codebook create -p <project-id> -n <name>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, err := s.project()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				codebook, err := client.CreateCodebook(cmd.Context(), projectID, name, description)
				if err != nil {
					return err
				}

				color.Green("codebook created: %s", codebook.ID)
				return nil
			})
		},
	}

	bindProjectFlag(command, &s)
	command.Flags().StringVarP(&name, "name", "n", "", "codebook name")
	command.Flags().StringVarP(&description, "description", "d", "", "codebook description")

	return command
}

func listCodebooksCmd() *cobra.Command {
	var s scope

	command := &cobra.Command{
		Use:   "list",
		Short: "list the codebooks of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := s.project()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				codebooks, err := client.ListCodebooks(cmd.Context(), projectID)
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Name"})
				for _, codebook := range codebooks {
					table.Append([]string{codebook.ID, codebook.Name})
				}
				table.Render()
				return nil
			})
		},
	}

	bindProjectFlag(command, &s)

	return command
}
