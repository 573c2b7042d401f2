package db

import (
	"fmt"
	"ledger-server/src/models"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field is a filterable transaction column. Only the names below are ever
// rendered into SQL.
type Field string

const (
	FieldID                Field = "id"
	FieldSeq               Field = "seq"
	FieldAccountID         Field = "account_id"
	FieldType              Field = "type"
	FieldStatus            Field = "status"
	FieldDate              Field = "date"
	FieldDueDate           Field = "due_date"
	FieldAmount            Field = "amount"
	FieldDescription       Field = "description"
	FieldCategoryID        Field = "category_id"
	FieldPaymentMethod     Field = "payment_method"
	FieldCardID            Field = "card_id"
	FieldTransferID        Field = "transfer_id"
	FieldTransferAccountID Field = "transfer_account_id"
	FieldInvestmentID      Field = "investment_id"
	FieldCreatedAt         Field = "created_at"
)

var knownFields = map[Field]bool{
	FieldID: true, FieldSeq: true, FieldAccountID: true, FieldType: true, FieldStatus: true,
	FieldDate: true, FieldDueDate: true, FieldAmount: true, FieldDescription: true,
	FieldCategoryID: true, FieldPaymentMethod: true, FieldCardID: true, FieldTransferID: true,
	FieldTransferAccountID: true, FieldInvestmentID: true, FieldCreatedAt: true,
}

func (f Field) Valid() bool { return knownFields[f] }

// Predicate is one node of a transaction filter.
type Predicate interface {
	predicate()
}

// Eq matches rows whose field equals Value.
type Eq struct {
	Field Field
	Value any
}

// In matches rows whose field is one of Values. An empty set matches nothing.
type In struct {
	Field  Field
	Values []any
}

// Range matches From <= field <= To. Nil bounds are open; the Exclusive
// flags turn either bound strict.
type Range struct {
	Field         Field
	From, To      any
	FromExclusive bool
	ToExclusive   bool
}

// Like is a case-insensitive SQL LIKE pattern (% and _ wildcards).
type Like struct {
	Field   Field
	Pattern string
}

// IsNull matches rows whose nullable field is unset (or set, with Not).
type IsNull struct {
	Field Field
	Not   bool
}

type Or []Predicate
type And []Predicate

func (Eq) predicate()     {}
func (In) predicate()     {}
func (Range) predicate()  {}
func (Like) predicate()   {}
func (IsNull) predicate() {}
func (Or) predicate()     {}
func (And) predicate()    {}

func InStrings(f Field, values []string) In {
	in := In{Field: f, Values: make([]any, len(values))}
	for i, v := range values {
		in.Values[i] = v
	}
	return in
}

// FieldValue returns the value of f on t. ok is false when the field is
// nullable and unset.
func FieldValue(t models.Transaction, f Field) (any, bool) {
	switch f {
	case FieldID:
		return t.ID, true
	case FieldSeq:
		return t.Seq, true
	case FieldAccountID:
		return t.AccountID, true
	case FieldType:
		return string(t.Type), true
	case FieldStatus:
		return string(t.Status), true
	case FieldDate:
		return t.Date, true
	case FieldDueDate:
		return t.DueDate, true
	case FieldAmount:
		return t.Amount, true
	case FieldDescription:
		return t.Description, true
	case FieldPaymentMethod:
		return string(t.PaymentMethod), true
	case FieldCreatedAt:
		return t.CreatedAt, true
	case FieldCategoryID:
		return deref(t.CategoryID)
	case FieldCardID:
		return deref(t.CardID)
	case FieldTransferID:
		return deref(t.TransferID)
	case FieldTransferAccountID:
		return deref(t.TransferAccountID)
	case FieldInvestmentID:
		return deref(t.InvestmentID)
	}
	return nil, false
}

func deref(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

// Match evaluates p against t in memory.
func Match(t models.Transaction, p Predicate) bool {
	switch c := p.(type) {
	case And:
		for _, sub := range c {
			if !Match(t, sub) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range c {
			if Match(t, sub) {
				return true
			}
		}
		return false
	case Eq:
		v, ok := FieldValue(t, c.Field)
		if !ok {
			return false
		}
		cmp, ok := compare(v, c.Value)
		return ok && cmp == 0
	case In:
		v, ok := FieldValue(t, c.Field)
		if !ok {
			return false
		}
		for _, want := range c.Values {
			if cmp, ok := compare(v, want); ok && cmp == 0 {
				return true
			}
		}
		return false
	case Range:
		v, ok := FieldValue(t, c.Field)
		if !ok {
			return false
		}
		if c.From != nil {
			cmp, ok := compare(v, c.From)
			if !ok || cmp < 0 || (c.FromExclusive && cmp == 0) {
				return false
			}
		}
		if c.To != nil {
			cmp, ok := compare(v, c.To)
			if !ok || cmp > 0 || (c.ToExclusive && cmp == 0) {
				return false
			}
		}
		return true
	case Like:
		v, ok := FieldValue(t, c.Field)
		s, isString := v.(string)
		return ok && isString && likeRegexp(c.Pattern).MatchString(s)
	case IsNull:
		_, set := FieldValue(t, c.Field)
		return set == c.Not
	default:
		return false
	}
}

// MatchAll reports whether t satisfies every predicate.
func MatchAll(t models.Transaction, where []Predicate) bool {
	return Match(t, And(where))
}

// compare orders two values of the same kind. ok is false for mismatched kinds.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), true
		case models.TransactionType:
			return strings.Compare(x, string(y)), true
		case models.Status:
			return strings.Compare(x, string(y)), true
		case models.PaymentMethod:
			return strings.Compare(x, string(y)), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y), true
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpInt(x, y), true
		case int:
			return cmpInt(x, int64(y)), true
		}
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// SortTransactions orders txs in place by orders, falling back to seq.
func SortTransactions(txs []models.Transaction, orders []Order) {
	if len(orders) == 0 {
		orders = DefaultOrder
	}
	sort.SliceStable(txs, func(i, j int) bool {
		for _, o := range orders {
			a, aok := FieldValue(txs[i], o.Field)
			b, bok := FieldValue(txs[j], o.Field)
			if !aok || !bok {
				if aok == bok {
					continue
				}
				// unset values sort last
				return aok != o.Desc
			}
			cmp, ok := compare(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return txs[i].Seq < txs[j].Seq
	})
}

// Validate rejects predicates that name unknown fields.
func Validate(where []Predicate) error {
	for _, p := range where {
		if err := validate(p); err != nil {
			return err
		}
	}
	return nil
}

func validate(p Predicate) error {
	var f Field
	switch c := p.(type) {
	case And:
		return Validate(c)
	case Or:
		return Validate(c)
	case Eq:
		f = c.Field
	case In:
		f = c.Field
	case Range:
		f = c.Field
	case Like:
		f = c.Field
	case IsNull:
		f = c.Field
	default:
		return fmt.Errorf("unsupported predicate %T", p)
	}
	if !f.Valid() {
		return fmt.Errorf("unknown filter field %q", f)
	}
	return nil
}
