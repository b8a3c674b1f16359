package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/service"
)

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "code commands",
}

func init() {
	codeCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	codeCmd.AddCommand(createCodeCmd())
	codeCmd.AddCommand(codeTreeCmd())
	codeCmd.AddCommand(codePathCmd())
	codeCmd.AddCommand(moveCodeCmd())
	codeCmd.AddCommand(moveCodeUpCmd())
	codeCmd.AddCommand(rootCodeCmd())
	codeCmd.AddCommand(deleteCodeCmd())
}

func createCodeCmd() *cobra.Command {
	var s scope
	var codebookID string
	var parentID string
	var name string
	var codeColor string
	var description string

	var required = []string{"codebook", "name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a code",
		Example: "qda code create -b <codebook-id> -n <name> --parent <code-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			req := service.CreateCodeRequest{Name: name, Color: codeColor, Description: description}
			if req.CodebookID, err = parseID("codebook", codebookID); err != nil {
				return err
			}
			if parentID != "" {
				parent, err := parseID("parent", parentID)
				if err != nil {
					return err
				}
				req.ParentID = &parent
			}

			return withClient(cmd, func(client *qda.Client) error {
				code, err := client.CreateCode(cmd.Context(), projectID, sourceID, req)
				if err != nil {
					return err
				}

				color.Green("code created: %s", code.ID)
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVarP(&codebookID, "codebook", "b", "", "codebook id")
	command.Flags().StringVar(&parentID, "parent", "", "parent code id, omit for a root code")
	command.Flags().StringVarP(&name, "name", "n", "", "code name")
	command.Flags().StringVar(&codeColor, "color", "", "display color")
	command.Flags().StringVarP(&description, "description", "d", "", "code description")

	return command
}

func codeTreeCmd() *cobra.Command {
	var s scope

	command := &cobra.Command{
		Use:   "tree",
		Short: "print the code hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				nodes, err := client.CodeTree(cmd.Context(), projectID, sourceID)
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"Code", "ID", "Codebook", "Color"})
				table.SetAutoWrapText(false)
				for _, node := range nodes {
					table.Append([]string{
						strings.Repeat("  ", node.Depth) + node.Name,
						node.ID,
						node.CodebookID,
						node.Color,
					})
				}
				table.Render()
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)

	return command
}

func codePathCmd() *cobra.Command {
	var s scope
	var codeID string

	var required = []string{"code"}

	command := &cobra.Command{
		Use:   "path",
		Short: "print the ancestors of a code",
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
				path, err := client.CodePath(cmd.Context(), projectID, sourceID, id)
				if err != nil {
					return err
				}

				names := make([]string, len(path))
				for i, code := range path {
					names[i] = code.Name
				}
				cmd.Println(strings.Join(names, " / "))
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVarP(&codeID, "code", "c", "", "code id")

	return command
}

// codeMoveCommand builds the commands that change the parent of one code.
func codeMoveCommand(use, short string, extra func(*cobra.Command), move func(cmd *cobra.Command, client *qda.Client, projectID, sourceID, codeID uuid.UUID) (coding.Code, error)) *cobra.Command {
	var s scope
	var codeID string

	var required = []string{"code"}

	command := &cobra.Command{
		Use:   use,
		Short: short,
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
				code, err := move(cmd, client, projectID, sourceID, id)
				if err != nil {
					return err
				}

				if code.IsRoot() {
					color.Green("code %s is a root", code.ID)
				} else {
					color.Green("code %s moved below %s", code.ID, code.ParentID)
				}
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVarP(&codeID, "code", "c", "", "code id")
	if extra != nil {
		extra(command)
	}

	return command
}

func moveCodeCmd() *cobra.Command {
	var parentID string

	return codeMoveCommand("move", "move a code below another code",
		func(command *cobra.Command) {
			command.Flags().StringVar(&parentID, "parent", "", "new parent code id, omit to make the code a root")
		},
		func(cmd *cobra.Command, client *qda.Client, projectID, sourceID, codeID uuid.UUID) (coding.Code, error) {
			var parent *uuid.UUID
			if parentID != "" {
				id, err := parseID("parent", parentID)
				if err != nil {
					return coding.Code{}, err
				}
				parent = &id
			}
			return client.ReparentCode(cmd.Context(), projectID, sourceID, codeID, parent)
		})
}

func moveCodeUpCmd() *cobra.Command {
	return codeMoveCommand("up", "move a code to its grandparent", nil,
		func(cmd *cobra.Command, client *qda.Client, projectID, sourceID, codeID uuid.UUID) (coding.Code, error) {
			return client.MoveCodeUp(cmd.Context(), projectID, sourceID, codeID)
		})
}

func rootCodeCmd() *cobra.Command {
	return codeMoveCommand("root", "detach a code from its parent", nil,
		func(cmd *cobra.Command, client *qda.Client, projectID, sourceID, codeID uuid.UUID) (coding.Code, error) {
			return client.RemoveCodeParent(cmd.Context(), projectID, sourceID, codeID)
		})
}

func deleteCodeCmd() *cobra.Command {
	var s scope
	var codeID string
	var keepChildren bool

	var required = []string{"code"}

	command := &cobra.Command{
		Use:   "delete",
		Short: "delete a code with its selections",
		Long:  `delete a code, its descendants and every selection they own. With --keep-children the children move up instead.`,
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
				cascade, err := client.DeleteCode(cmd.Context(), projectID, sourceID, id, keepChildren)
				if err != nil {
					return err
				}

				color.Green("deleted %d codes and %d selections of this source", len(cascade.Codes), len(cascade.Selections))
				if len(cascade.Promoted) > 0 {
					color.Magenta("%d children moved up", len(cascade.Promoted))
				}
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().StringVarP(&codeID, "code", "c", "", "code id")
	command.Flags().BoolVar(&keepChildren, "keep-children", false, "move the children up instead of deleting them")

	return command
}
