// Package filter narrows an in-memory slice of users by first name, last
// name, email and phone.
//
// Every function here is pure: the input slice and the records it points to
// are never modified, the result keeps the relative order of the input, and
// nil *models.User entries are skipped. A nil input slice behaves like an
// empty one.
package filter

import (
	"strings"

	"userManagement/models"
)

// ByFirstName keeps users whose first name starts with term.
// Both sides are lowercased and trimmed. An empty term keeps everything.
func ByFirstName(records []*models.User, term string) []*models.User {
	return keep(records, foldPrefix(strings.ToLower(strings.TrimSpace(term)), func(u *models.User) string {
		return u.FirstName
	}))
}

// ByLastName keeps users whose last name starts with term, compared the same
// way as ByFirstName. Users without a last name never match a non-empty term.
// An empty term returns a new slice holding every input record.
func ByLastName(records []*models.User, term string) []*models.User {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		out := make([]*models.User, 0, len(records))
		for _, u := range records {
			if u != nil {
				out = append(out, u)
			}
		}
		return out
	}
	return keep(records, func(u *models.User) bool {
		if u.LastName == "" {
			return false
		}
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u.LastName)), needle)
	})
}

// ByEmail keeps users whose email contains term anywhere, case-insensitively.
// This lets callers search by domain, local part or any fragment.
func ByEmail(records []*models.User, term string) []*models.User {
	needle := strings.ToLower(strings.TrimSpace(term))
	return keep(records, func(u *models.User) bool {
		return strings.Contains(strings.ToLower(strings.TrimSpace(u.Email)), needle)
	})
}

// ByPhone keeps users whose phone starts with term. Phones are trimmed but
// not case-folded.
func ByPhone(records []*models.User, term string) []*models.User {
	needle := strings.TrimSpace(term)
	return keep(records, func(u *models.User) bool {
		return strings.HasPrefix(strings.TrimSpace(u.Phone), needle)
	})
}

// Users applies every non-blank criterion, in the order first name, last
// name, email, phone, each stage narrowing the previous stage's output.
// A nil records slice yields an empty, non-nil result.
func Users(records []*models.User, firstName, lastName, email, phone string) []*models.User {
	return Criteria{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phone,
	}.Apply(records)
}

// Search keeps users whose first or last name contains query,
// case-insensitively. A blank query keeps everything. It matches the
// semantics of the storage-side search so both paths return the same rows.
func Search(records []*models.User, query string) []*models.User {
	needle := strings.ToLower(strings.TrimSpace(query))
	return keep(records, func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle)
	})
}

func foldPrefix(needle string, field func(*models.User) string) func(*models.User) bool {
	return func(u *models.User) bool {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(field(u))), needle)
	}
}

func keep(records []*models.User, match func(*models.User) bool) []*models.User {
	out := make([]*models.User, 0, len(records))
	for _, u := range records {
		if u == nil {
			continue
		}
		if match(u) {
			out = append(out, u)
		}
	}
	return out
}
