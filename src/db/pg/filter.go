package pg

import (
	"fmt"
	"ledger-server/src/db"
	"ledger-server/src/models"
	"strings"
)

// builder renders predicates into a WHERE fragment with $n placeholders.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, sqlValue(v))
	return fmt.Sprintf("$%d", len(b.args))
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case models.TransactionType:
		return string(x)
	case models.Status:
		return string(x)
	case models.PaymentMethod:
		return string(x)
	}
	return v
}

func column(f db.Field) (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("unknown filter field %q", f)
	}
	return string(f), nil
}

func (b *builder) scope(s models.Scope) string {
	return fmt.Sprintf("user_id = %s AND is_business = %s AND company_id IS NOT DISTINCT FROM %s",
		b.arg(s.UserID), b.arg(s.IsBusiness), b.arg(s.CompanyID))
}

func (b *builder) where(preds []db.Predicate) (string, error) {
	if len(preds) == 0 {
		return "", nil
	}
	return b.render(db.And(preds))
}

func (b *builder) render(p db.Predicate) (string, error) {
	switch c := p.(type) {
	case db.And:
		return b.join(c, " AND ", "TRUE")
	case db.Or:
		return b.join(c, " OR ", "FALSE")
	case db.Eq:
		col, err := column(c.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + b.arg(c.Value), nil
	case db.In:
		col, err := column(c.Field)
		if err != nil {
			return "", err
		}
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, len(c.Values))
		for i, v := range c.Values {
			placeholders[i] = b.arg(v)
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	case db.Range:
		col, err := column(c.Field)
		if err != nil {
			return "", err
		}
		var parts []string
		if c.From != nil {
			op := " >= "
			if c.FromExclusive {
				op = " > "
			}
			parts = append(parts, col+op+b.arg(c.From))
		}
		if c.To != nil {
			op := " <= "
			if c.ToExclusive {
				op = " < "
			}
			parts = append(parts, col+op+b.arg(c.To))
		}
		if len(parts) == 0 {
			return "TRUE", nil
		}
		return strings.Join(parts, " AND "), nil
	case db.Like:
		col, err := column(c.Field)
		if err != nil {
			return "", err
		}
		return col + " ILIKE " + b.arg(c.Pattern), nil
	case db.IsNull:
		col, err := column(c.Field)
		if err != nil {
			return "", err
		}
		if c.Not {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (b *builder) join(preds []db.Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		s, err := b.render(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

func orderBy(orders []db.Order) (string, error) {
	if len(orders) == 0 {
		orders = db.DefaultOrder
	}
	parts := make([]string, 0, len(orders)+1)
	hasSeq := false
	for _, o := range orders {
		col, err := column(o.Field)
		if err != nil {
			return "", err
		}
		if o.Field == db.FieldSeq {
			hasSeq = true
		}
		if o.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if !hasSeq {
		parts = append(parts, "seq")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// selectQuery renders q into SQL and its arguments.
func selectQuery(q db.Query) (string, []any, error) {
	var b builder
	var sb strings.Builder
	sb.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE ")
	sb.WriteString(b.scope(q.Scope))

	where, err := b.where(q.Where)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" AND (" + where + ")")
	}

	order, err := orderBy(q.OrderBy)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(order)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + b.arg(q.Offset))
	}
	if q.ForUpdate {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), b.args, nil
}

func deleteQuery(scope models.Scope, preds []db.Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, fmt.Errorf("delete without a filter")
	}
	var b builder
	sql := "DELETE FROM transactions WHERE " + b.scope(scope)
	where, err := b.where(preds)
	if err != nil {
		return "", nil, err
	}
	return sql + " AND (" + where + ")", b.args, nil
}
