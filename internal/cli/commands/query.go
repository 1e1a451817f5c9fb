package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omegaorm/omega/internal/cli/ui"
)

var (
	queryParams []string
	queryScalar bool
	queryExec   bool
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run raw SQL through the entity manager",
		Long: `Run a raw statement with named parameters and print the result.

Parameters are bound by name, so the SQL refers to them as @name. Reads
are retried according to orm.max_retries.`,
		Example: `  # Print a result table
  omega query "SELECT ProductId, Name FROM Products t WHERE t.CategoryId = @cat" -p cat=3

  # Print a single value
  omega query --scalar "SELECT COUNT(*) FROM Products t"

  # Run a statement and print the affected row count
  omega query --exec "DELETE FROM Products WHERE Name = @name" -p name=obsolete`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Named parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&queryScalar, "scalar", false, "Print the first column of the first row only")
	cmd.Flags().BoolVar(&queryExec, "exec", false, "Execute a statement in a transaction and print the affected rows")
	cmd.MarkFlagsMutuallyExclusive("scalar", "exec")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	params, err := parseParams(queryParams)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	switch {
	case queryExec:
		affected, err := s.Manager.Execute(ctx, args[0], params)
		if err != nil {
			return err
		}
		ui.Success(out, "%d row(s) affected", affected)
	case queryScalar:
		value, err := s.Manager.GetSingleScalarResult(ctx, args[0], params)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Cell(value))
	default:
		rs, err := s.Manager.GetResult(ctx, args[0], params)
		if err != nil {
			return err
		}
		ui.RenderRowSet(out, rs, noColor)
		ui.Info(out, "%d row(s)", rs.Len())
	}
	return nil
}

// parseParams turns name=value pairs into named parameters. A leading @ on
// the name is accepted.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", pair)
		}
		params[name] = value
	}
	return params, nil
}
