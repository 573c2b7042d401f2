package models

import "fmt"

// Scope is the tenant partition every row belongs to. Rows from different
// scopes are never read or aggregated together.
type Scope struct {
	UserID     string  `json:"user_id"`
	IsBusiness bool    `json:"is_business"`
	CompanyID  *string `json:"company_id"`
}

// Contains reports whether a row tagged with other belongs to s.
func (s Scope) Contains(other Scope) bool {
	if s.UserID != other.UserID || s.IsBusiness != other.IsBusiness {
		return false
	}
	if s.CompanyID == nil || other.CompanyID == nil {
		return s.CompanyID == nil && other.CompanyID == nil
	}
	return *s.CompanyID == *other.CompanyID
}

func (s Scope) String() string {
	company := "-"
	if s.CompanyID != nil {
		company = *s.CompanyID
	}
	return fmt.Sprintf("%s/%t/%s", s.UserID, s.IsBusiness, company)
}
