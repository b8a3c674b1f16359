package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/emrgen/qda"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/config"
	"github.com/emrgen/qda/internal/service"
)

var errMissingFlags = errors.New("missing required flags")

// scope is the project and source a command works on.
type scope struct {
	projectID string
	sourceID  string
}

func bindProjectFlag(command *cobra.Command, s *scope) {
	command.Flags().StringVarP(&s.projectID, "project", "p", "", "project id, defaults to the context")
}

func bindScopeFlags(command *cobra.Command, s *scope) {
	bindProjectFlag(command, s)
	command.Flags().StringVarP(&s.sourceID, "source", "s", "", "source id, defaults to the context")
}

func (s *scope) project() (uuid.UUID, error) {
	id := s.projectID
	if id == "" {
		id = readContext().ProjectID
	}
	if id == "" {
		color.Red("missing: --project")
		return uuid.Nil, errMissingFlags
	}
	return parseID("project", id)
}

func (s *scope) resolve() (uuid.UUID, uuid.UUID, error) {
	projectID, err := s.project()
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	id := s.sourceID
	if id == "" {
		id = readContext().SourceID
	}
	if id == "" {
		color.Red("missing: --source")
		return uuid.Nil, uuid.Nil, errMissingFlags
	}
	sourceID, err := parseID("source", id)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return projectID, sourceID, nil
}

func parseID(flag, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: --%s %q is not a uuid", coding.ErrInvalidOperation, flag, value)
	}
	return id, nil
}

func openClient(cmd *cobra.Command) (*qda.Client, error) {
	cfg := config.LoadConfig()
	cfg.SetupLogger()
	return qda.NewClient(cmd.Context(), cfg)
}

// withClient opens a client for the duration of fn.
func withClient(cmd *cobra.Command, fn func(client *qda.Client) error) error {
	client, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, "--"+required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		color.Red("missing: %s\n", strings.Join(missingFlags, " "))
		if len(providedFlags) > 0 {
			color.Green("provided: %s\n", strings.Join(providedFlags, " "))
		}

		cmd.Println("")
		_ = cmd.Usage()

		return true
	}

	return false
}

// printError reports an error. Errors of the coding kinds already name their
// kind, anything else comes from a backend.
func printError(err error) {
	switch {
	case errors.Is(err, errMissingFlags):
		// already reported
	case service.IsNotFound(err):
		color.Red("%v", err)
		color.Yellow("check the scope with: qda context current")
	case errors.Is(err, coding.ErrInvalidOperation),
		errors.Is(err, coding.ErrDuplicateID),
		errors.Is(err, coding.ErrConstraintViolation):
		color.Red("%v", err)
	default:
		color.Red("error: %v", err)
	}
}
