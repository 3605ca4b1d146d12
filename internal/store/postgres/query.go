package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// listQuery appends the time window, ordering and paging of opts to base,
// numbering placeholders after the args already present.
func listQuery(base, timeColumn string, args []any, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.Since != nil {
		fmt.Fprintf(&b, " AND %s >= %s", timeColumn, next(*opts.Since))
	}
	if opts.Until != nil {
		fmt.Fprintf(&b, " AND %s <= %s", timeColumn, next(*opts.Until))
	}
	fmt.Fprintf(&b, " ORDER BY %s DESC", timeColumn)
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", next(opts.Limit))
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %s", next(opts.Offset))
	}
	return b.String(), args
}
