package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omegaorm/omega/internal/orm/query"
)

var (
	renderSelect   []string
	renderDistinct bool
	renderFrom     string
	renderAlias    string
	renderWhere    []string
	renderOrWhere  []string
	renderOrder    []string
	renderGroup    []string
	renderHaving   string
	renderLimit    int
)

// NewRenderCommand creates the render command
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the SQL produced by the query builder",
		Long: `Assemble a SELECT with the query builder and print it without touching
the database. Clauses are emitted in builder priority order, so flags may
be given in any order.`,
		Example: `  omega render --from Products --select ProductId,Name --where "t.Price > 10" --order "Name desc" --limit 5`,
		Args:    cobra.NoArgs,
		RunE:    runRender,
	}

	cmd.Flags().StringSliceVar(&renderSelect, "select", nil, "Fields to select (default *)")
	cmd.Flags().BoolVar(&renderDistinct, "distinct", false, "Select distinct rows")
	cmd.Flags().StringVar(&renderFrom, "from", "", "Table to select from")
	cmd.Flags().StringVar(&renderAlias, "alias", query.DefaultAlias, "Table alias")
	cmd.Flags().StringArrayVar(&renderWhere, "where", nil, "Condition joined with AND (repeatable)")
	cmd.Flags().StringArrayVar(&renderOrWhere, "or-where", nil, "Condition joined with OR (repeatable)")
	cmd.Flags().StringArrayVar(&renderOrder, "order", nil, "Ordering as \"field [asc|desc]\" (repeatable)")
	cmd.Flags().StringSliceVar(&renderGroup, "group", nil, "Fields to group by")
	cmd.Flags().StringVar(&renderHaving, "having", "", "HAVING condition")
	cmd.Flags().IntVar(&renderLimit, "limit", 0, "Maximum number of rows (TOP)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	b, err := buildSelect()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), b.String())
	return nil
}

func buildSelect() (*query.Builder, error) {
	b := query.New()

	fields := renderSelect
	if len(fields) == 0 {
		fields = []string{"*"}
	}
	if renderDistinct {
		b.SelectDistinct(fields...)
	} else {
		b.Select(fields...)
	}
	if renderLimit > 0 {
		b.Top(renderLimit)
	}
	b.From(renderFrom, renderAlias)

	for _, w := range renderWhere {
		b.Filter(query.Text(w))
	}
	for i, w := range renderOrWhere {
		if i == 0 && len(renderWhere) == 0 {
			b.Where(query.Text(w))
			continue
		}
		b.OrWhere(query.Text(w))
	}

	for _, o := range renderOrder {
		field, dir, err := parseOrder(o)
		if err != nil {
			return nil, err
		}
		b.OrderBy(field, dir)
	}

	if len(renderGroup) > 0 {
		b.GroupBy(renderGroup...)
	}
	if renderHaving != "" {
		b.Having(query.Text(renderHaving))
	}
	return b, nil
}

func parseOrder(s string) (string, query.Direction, error) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 1:
		return parts[0], query.Asc, nil
	case 2:
		switch strings.ToUpper(parts[1]) {
		case "ASC":
			return parts[0], query.Asc, nil
		case "DESC":
			return parts[0], query.Desc, nil
		}
	}
	return "", "", fmt.Errorf("invalid ordering %q (expected \"field [asc|desc]\")", s)
}
