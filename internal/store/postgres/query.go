package postgres

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// defaultListLimit applies when ListOpts.Limit is unset.
const defaultListLimit = 100

// listQuery appends time filters, newest-first ordering and pagination on
// timeCol to base, which must already contain a WHERE clause.
func listQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	query := base
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= %s", timeCol, arg(*opts.Since))
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= %s", timeCol, arg(*opts.Until))
	}
	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " LIMIT " + arg(limit)
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}
	return query, args
}

// numeric converts v for a NUMERIC(78,0) column; nil becomes NULL.
func numeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Valid: true}
}

// parseNumeric reverses numeric for values selected with ::text.
func parseNumeric(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: invalid numeric %q", *s)
	}
	return v, nil
}
