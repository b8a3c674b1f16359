package cmd

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda"
	"github.com/emrgen/qda/internal/config"
	"github.com/emrgen/qda/internal/server"
)

func segmentsCmd() *cobra.Command {
	var s scope
	var gaps bool
	var hideCodes []string
	var hideCodebooks []string

	command := &cobra.Command{
		Use:     "segments",
		Short:   "print the source cut into segments of overlapping selections",
		Example: "qda segments --gaps --hide <code-id>",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				ctx := cmd.Context()
				for _, raw := range hideCodes {
					id, err := parseID("hide", raw)
					if err != nil {
						return err
					}
					if _, err := client.SetCodeActive(ctx, projectID, sourceID, id, false); err != nil {
						return err
					}
				}
				for _, raw := range hideCodebooks {
					id, err := parseID("hide-codebook", raw)
					if err != nil {
						return err
					}
					if _, err := client.SetCodebookActive(ctx, projectID, sourceID, id, false); err != nil {
						return err
					}
				}

				names, err := codeNames(cmd, client, &s)
				if err != nil {
					return err
				}
				segments, err := client.Segments(ctx, projectID, sourceID, gaps)
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"Start", "End", "Text", "Codes"})
				for _, seg := range segments {
					text, err := client.Excerpt(ctx, projectID, sourceID, seg.Start, seg.End)
					if err != nil {
						return err
					}
					codes := make([]string, len(seg.Selections))
					for i, sel := range seg.Selections {
						codes[i] = names[sel.CodeID]
					}
					table.Append([]string{
						strconv.Itoa(seg.Start),
						strconv.Itoa(seg.End),
						text,
						strings.Join(codes, ", "),
					})
				}
				table.Render()

				graph, err := client.Intersections(ctx, projectID, sourceID)
				if err != nil {
					return err
				}
				for _, group := range graph.Groups() {
					if len(group) > 1 {
						color.Cyan("overlapping: %s", strings.Join(group, ", "))
					}
				}
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().BoolVar(&gaps, "gaps", false, "include the uncoded parts of the text")
	command.Flags().StringSliceVar(&hideCodes, "hide", nil, "code ids to hide with their descendants")
	command.Flags().StringSliceVar(&hideCodebooks, "hide-codebook", nil, "codebook ids to hide")

	return command
}

func codeNames(cmd *cobra.Command, client *qda.Client, s *scope) (map[string]string, error) {
	projectID, sourceID, err := s.resolve()
	if err != nil {
		return nil, err
	}
	nodes, err := client.CodeTree(cmd.Context(), projectID, sourceID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(nodes))
	for _, node := range nodes {
		names[node.ID] = node.Name
	}
	return names, nil
}

func codesAtCmd() *cobra.Command {
	var s scope
	var offset int

	var required = []string{"offset"}

	command := &cobra.Command{
		Use:   "at",
		Short: "print the codes applying at an offset, innermost first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return errMissingFlags
			}
			projectID, sourceID, err := s.resolve()
			if err != nil {
				return err
			}

			return withClient(cmd, func(client *qda.Client) error {
				codes, err := client.CodesAt(cmd.Context(), projectID, sourceID, offset)
				if err != nil {
					return err
				}
				if len(codes) == 0 {
					color.Yellow("no code applies at %d", offset)
					return nil
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Name", "Color"})
				for _, code := range codes {
					table.Append([]string{code.ID, code.Name, code.Color})
				}
				table.Render()
				return nil
			})
		},
	}

	bindScopeFlags(command, &s)
	command.Flags().IntVarP(&offset, "offset", "o", 0, "character offset")

	return command
}

func workerCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "worker",
		Short: "run the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			cfg.SetupLogger()

			client, err := qda.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Migrate(); err != nil {
				return err
			}

			return server.NewWorker(client.Jobs()).Start()
		},
	}

	return command
}
