package filter

import (
	"strings"

	"userManagement/models"
)

// Criteria holds the optional per-field search terms. A blank field imposes
// no constraint.
type Criteria struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Stage names, in application order.
const (
	StageFirstName = "first_name"
	StageLastName  = "last_name"
	StageEmail     = "email"
	StagePhone     = "phone"
)

// StageResult describes one narrowing step of Criteria.Trace.
type StageResult struct {
	Stage  string
	Term   string
	Before int
	After  int
}

// Normalize returns a copy with every field trimmed.
func (c Criteria) Normalize() Criteria {
	return Criteria{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
	}
}

// Active reports how many criteria are present.
func (c Criteria) Active() int {
	n := 0
	for _, s := range c.stages() {
		if s.term != "" {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no criterion is present.
func (c Criteria) IsEmpty() bool { return c.Active() == 0 }

// Apply narrows records by every present criterion.
func (c Criteria) Apply(records []*models.User) []*models.User {
	out, _ := c.Trace(records)
	return out
}

// Trace is Apply that also reports the size of the result after each stage
// that ran. Stages for absent criteria are not reported.
func (c Criteria) Trace(records []*models.User) ([]*models.User, []StageResult) {
	out := make([]*models.User, 0, len(records))
	for _, u := range records {
		if u != nil {
			out = append(out, u)
		}
	}
	var trace []StageResult
	for _, s := range c.stages() {
		if s.term == "" {
			continue
		}
		before := len(out)
		out = s.apply(out, s.term)
		trace = append(trace, StageResult{Stage: s.name, Term: s.term, Before: before, After: len(out)})
	}
	return out, trace
}

type stage struct {
	name  string
	term  string
	apply func([]*models.User, string) []*models.User
}

func (c Criteria) stages() []stage {
	n := c.Normalize()
	return []stage{
		{StageFirstName, n.FirstName, ByFirstName},
		{StageLastName, n.LastName, ByLastName},
		{StageEmail, n.Email, ByEmail},
		{StagePhone, n.Phone, ByPhone},
	}
}
