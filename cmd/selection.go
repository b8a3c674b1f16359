package cmd

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/service"
)

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "selection commands",
}

func init() {
	selectionCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	selectionCmd.AddCommand(addSelectionCmd())
	selectionCmd.AddCommand(listSelectionsCmd())
	selectionCmd.AddCommand(moveSelectionCmd())
	selectionCmd.AddCommand(describeSelectionCmd())
	selectionCmd.AddCommand(deleteSelectionsCmd())
}

func addSelectionCmd() *cobra.Command {
	var s scope
	var codeID string
	var start int
	var end int
	var description string

	var required = []string{"code", "start", "end"}

	command := &cobra.Command{
		Use:     "add",
		Short:   "tag a range of the source with a code",
		Long:    `tag the inclusive character range [start, end] of the source with a code`,
		Example: "qda selection add -c <code-id> --start 0 --end 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}
			id, err := parseID("code", codeID)
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				sel, err := client.AddSelection(cmd.Context(), projectID, sourceID, service.AddSelectionRequest{
					CodeID:      id,
					Start:       start,
					End:         end,
					Description: description,
				})
				if err != nil {
					return err
				}

				color.Green("selection created: %s", sel.ID)
				cmd.Printf("%q\n", sel.Text)
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVarP(&codeID, "code", "c", "", "code id")
	command.Flags().IntVar(&start, "start", 0, "first character offset")
	command.Flags().IntVar(&end, "end", 0, "last character offset, inclusive")
	command.Flags().StringVarP(&description, "description", "d", "", "annotation")

	return command
}

func listSelectionsCmd() *cobra.Command {
	var s scope

	command := &cobra.Command{
		Use:   "list",
		Short: "list the selections of the source, shortest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				selections, err := client.Selections(cmd.Context(), projectID, sourceID)
				if err != nil {
					return err
				}

				printSelections(cmd, selections)
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)

	return command
}

func printSelections(cmd *cobra.Command, selections []coding.Selection) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "Code", "Start", "End", "Text", "Description"})
	for _, sel := range selections {
		table.Append([]string{
			sel.ID,
			sel.CodeID,
			strconv.Itoa(sel.Start),
			strconv.Itoa(sel.End),
			sel.Text,
			sel.Description,
		})
	}
	table.Render()
}

func moveSelectionCmd() *cobra.Command {
	var s scope
	var selectionID string
	var codeID string

	var required = []string{"selection", "code"}

	command := &cobra.Command{
		Use:   "move",
		Short: "assign a selection to another code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}
			selID, err := parseID("selection", selectionID)
			if err != nil {
				return err
			}
			id, err := parseID("code", codeID)
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				sel, err := client.ReassignSelection(cmd.Context(), projectID, sourceID, selID, id)
				if err != nil {
					return err
				}

				color.Green("selection %s moved to code %s", sel.ID, sel.CodeID)
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVar(&selectionID, "selection", "", "selection id")
	command.Flags().StringVarP(&codeID, "code", "c", "", "new code id")

	return command
}

func describeSelectionCmd() *cobra.Command {
	var s scope
	var selectionID string
	var description string

	var required = []string{"selection"}

	command := &cobra.Command{
		Use:   "describe",
		Short: "set the annotation of a selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}
			selID, err := parseID("selection", selectionID)
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				_, err := client.DescribeSelection(cmd.Context(), projectID, sourceID, selID, description)
				if err != nil {
					return err
				}

				color.Green("selection %s updated", selID)
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVar(&selectionID, "selection", "", "selection id")
	command.Flags().StringVarP(&description, "description", "d", "", "annotation, empty clears it")

	return command
}

func deleteSelectionsCmd() *cobra.Command {
	var s scope
	var selectionIDs []string

	var required = []string{"selection"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete selections",
		Long:    `delete every listed selection, or none when one of them does not exist`,
		Example: "qda selection delete --selection <id>,<id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			ids := make([]uuid.UUID, 0, len(selectionIDs))
			for _, raw := range selectionIDs {
				id, err := parseID("selection", strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return withClient(cmd, func(client *qda.Client) error {
				removed, err := client.RemoveSelections(cmd.Context(), projectID, sourceID, ids...)
				if err != nil {
					return err
				}

				color.Green("deleted %d selections", len(removed))
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringSliceVar(&selectionIDs, "selection", nil, "selection ids")

	return command
}
