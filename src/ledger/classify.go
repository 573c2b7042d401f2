package ledger

import (
	"fmt"
	"ledger-server/src/models"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FlowKind is how the aggregator treats a row.
type FlowKind string

const (
	FlowIncome     FlowKind = "income"
	FlowExpense    FlowKind = "expense"
	FlowTransfer   FlowKind = "transfer"
	FlowInvestment FlowKind = "investment"
)

const (
	DefaultIncomeBucket  = "other_income"
	DefaultExpenseBucket = "other_expense"
)

// Classification is the outcome of Classify. Rule names the table entry
// that decided it.
type Classification struct {
	Kind   FlowKind `json:"kind"`
	Bucket string   `json:"bucket,omitempty"`
	Rule   string   `json:"rule"`
}

// BucketRule assigns Bucket to rows matching When, or whose description
// contains any of Keywords.
type BucketRule struct {
	Name     string                 `yaml:"name"`
	Bucket   string                 `yaml:"bucket"`
	Type     models.TransactionType `yaml:"type,omitempty"`
	Keywords []string               `yaml:"keywords,omitempty"`
	When     *models.Condition      `yaml:"when,omitempty"`
}

// Rules is the YAML document read from CATEGORY_RULES_PATH.
//
//	categories:
//	  cat-rent: housing
//	rules:
//	  - name: groceries
//	    bucket: food
//	    keywords: [market, grocery]
//	fallback:
//	  income: other_income
//	  expense: other_expense
type Rules struct {
	Categories map[string]string `yaml:"categories"`
	Rules      []BucketRule      `yaml:"rules"`
	Fallback   struct {
		Income  string `yaml:"income"`
		Expense string `yaml:"expense"`
	} `yaml:"fallback"`
}

func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse category rules: %w", err)
	}
	for i, rule := range r.Rules {
		if rule.Bucket == "" {
			return Rules{}, fmt.Errorf("category rule %d (%s) has no bucket", i, rule.Name)
		}
		if len(rule.Keywords) == 0 && rule.When == nil {
			return Rules{}, fmt.Errorf("category rule %d (%s) has neither keywords nor when", i, rule.Name)
		}
	}
	return r, nil
}

func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read category rules: %w", err)
	}
	return ParseRules(data)
}

type kindRule struct {
	name  string
	match func(models.Transaction) bool
	kind  FlowKind
}

// kindTable decides the flow kind; the first match wins and rows matching
// nothing fall through to their own type.
var kindTable = []kindRule{
	{"transfer_id", func(t models.Transaction) bool { return t.TransferID != nil }, FlowTransfer},
	{"transfer_method", func(t models.Transaction) bool { return t.PaymentMethod == models.PaymentTransfer }, FlowTransfer},
	{"investment_id", func(t models.Transaction) bool { return t.InvestmentID != nil }, FlowInvestment},
}

type Classifier struct {
	rules Rules
}

func NewClassifier(r Rules) *Classifier {
	if r.Fallback.Income == "" {
		r.Fallback.Income = DefaultIncomeBucket
	}
	if r.Fallback.Expense == "" {
		r.Fallback.Expense = DefaultExpenseBucket
	}
	return &Classifier{rules: r}
}

// Classify runs the decision table: flow kind first, then for plain income
// and expense rows the bucket from mapped category, rule match or fallback.
func (c *Classifier) Classify(t models.Transaction) Classification {
	for _, r := range kindTable {
		if r.match(t) {
			return Classification{Kind: r.kind, Rule: r.name}
		}
	}

	kind := FlowExpense
	if t.Type == models.Income {
		kind = FlowIncome
	}

	if t.CategoryID != nil {
		if bucket, ok := c.rules.Categories[*t.CategoryID]; ok {
			return Classification{Kind: kind, Bucket: bucket, Rule: "category"}
		}
	}
	for _, r := range c.rules.Rules {
		if r.Type != "" && r.Type != t.Type {
			continue
		}
		if r.matches(t) {
			return Classification{Kind: kind, Bucket: r.Bucket, Rule: "rule:" + r.Name}
		}
	}
	if kind == FlowIncome {
		return Classification{Kind: kind, Bucket: c.rules.Fallback.Income, Rule: "fallback"}
	}
	return Classification{Kind: kind, Bucket: c.rules.Fallback.Expense, Rule: "fallback"}
}

func (r BucketRule) matches(t models.Transaction) bool {
	desc := strings.ToLower(t.Description)
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(desc, strings.ToLower(kw)) {
			return true
		}
	}
	return r.When != nil && evaluateCondition(*r.When, t)
}

func evaluateCondition(cond models.Condition, t models.Transaction) bool {
	// Logical AND
	if len(cond.And) > 0 {
		for _, c := range cond.And {
			if !evaluateCondition(c, t) {
				return false
			}
		}
		return true
	}
	// Logical OR
	if len(cond.Or) > 0 {
		for _, c := range cond.Or {
			if evaluateCondition(c, t) {
				return true
			}
		}
		return false
	}

	var fieldValue interface{}
	switch cond.Field {
	case "description":
		fieldValue = t.Description
	case "payment_method":
		fieldValue = string(t.PaymentMethod)
	case "account":
		fieldValue = t.AccountID
	case "category":
		fieldValue = ""
		if t.CategoryID != nil {
			fieldValue = *t.CategoryID
		}
	case "amount":
		fieldValue = t.Amount
	default:
		return false
	}

	switch cond.Op {
	case "equals":
		switch v := fieldValue.(type) {
		case string:
			val, ok := cond.Value.(string)
			return ok && strings.EqualFold(v, val)
		case decimal.Decimal:
			val, ok := number(cond.Value)
			return ok && v.Equal(val)
		}
		return false
	case "contains":
		s, ok := fieldValue.(string)
		val, ok2 := cond.Value.(string)
		return ok && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(val))
	case "gte", "lte", "gt", "lt":
		v, ok := fieldValue.(decimal.Decimal)
		val, ok2 := number(cond.Value)
		if !ok || !ok2 {
			return false
		}
		cmp := v.Cmp(val)
		switch cond.Op {
		case "gte":
			return cmp >= 0
		case "lte":
			return cmp <= 0
		case "gt":
			return cmp > 0
		}
		return cmp < 0
	case "in":
		s, ok := fieldValue.(string)
		arr, ok2 := cond.Value.([]interface{})
		if ok && ok2 {
			for _, v := range arr {
				if str, ok := v.(string); ok && strings.EqualFold(s, str) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// number reads a rule value decoded from YAML or JSON.
func number(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Zero, false
}
