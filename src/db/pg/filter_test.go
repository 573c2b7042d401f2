package pg

import (
	"ledger-server/src/db"
	"ledger-server/src/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectQuery(t *testing.T) {
	company := "acme"
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q := db.Query{
		Scope: models.Scope{UserID: "u1", IsBusiness: true, CompanyID: &company},
		Where: []db.Predicate{
			db.Eq{Field: db.FieldStatus, Value: models.StatusCompleted},
			db.Range{Field: db.FieldDueDate, From: from, FromExclusive: true},
			db.Or{db.InStrings(db.FieldID, []string{"a", "b"}), db.IsNull{Field: db.FieldTransferID, Not: true}},
		},
		Limit:     50,
		Offset:    100,
		ForUpdate: true,
	}

	sql, args, err := selectQuery(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "user_id = $1 AND is_business = $2 AND company_id IS NOT DISTINCT FROM $3")
	assert.Contains(t, sql, "AND ((status = $4) AND (due_date > $5) AND ((id IN ($6, $7)) OR (transfer_id IS NOT NULL)))")
	assert.Contains(t, sql, "ORDER BY due_date, seq LIMIT $8 OFFSET $9 FOR UPDATE")
	require.Len(t, args, 9)
	assert.Equal(t, "completed", args[3], "typed constants are sent as plain strings")
	assert.Equal(t, from, args[4])
	assert.Equal(t, 50, args[7])
}

func TestSelectQuery_Orders(t *testing.T) {
	sql, _, err := selectQuery(db.Query{
		Scope:   models.Scope{UserID: "u1"},
		OrderBy: []db.Order{{Field: db.FieldTransferID}, {Field: db.FieldDate, Desc: true}},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY transfer_id, date DESC, seq")
	assert.NotContains(t, sql, "LIMIT")
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		p    db.Predicate
		want string
	}{
		{"empty in", db.In{Field: db.FieldID}, "FALSE"},
		{"like", db.Like{Field: db.FieldDescription, Pattern: "%rent%"}, "description ILIKE $1"},
		{"is null", db.IsNull{Field: db.FieldInvestmentID}, "investment_id IS NULL"},
		{"open range", db.Range{Field: db.FieldAmount}, "TRUE"},
		{"closed range", db.Range{Field: db.FieldDueDate, From: 1, To: 2, ToExclusive: true}, "due_date >= $1 AND due_date < $2"},
		{"empty or", db.Or{}, "FALSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b builder
			got, err := b.render(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRejectsUnknownFields(t *testing.T) {
	_, _, err := selectQuery(db.Query{Where: []db.Predicate{db.Eq{Field: "1=1; --", Value: 1}}})
	assert.Error(t, err)

	_, _, err = selectQuery(db.Query{OrderBy: []db.Order{{Field: "random()"}}})
	assert.Error(t, err)

	_, _, err = deleteQuery(models.Scope{UserID: "u1"}, nil)
	assert.Error(t, err)
}

func TestDeleteQuery(t *testing.T) {
	sql, args, err := deleteQuery(models.Scope{UserID: "u1"}, []db.Predicate{
		db.Or{db.InStrings(db.FieldID, []string{"a"}), db.InStrings(db.FieldTransferID, []string{"t"})},
	})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM transactions WHERE user_id = $1 AND is_business = $2 AND company_id IS NOT DISTINCT FROM $3 AND (((id IN ($4)) OR (transfer_id IN ($5))))", sql)
	assert.Len(t, args, 5)
}
