package models

// User represents a person in the directory.
// It maps to the `users` table in SQLite.
type User struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Phone     string `db:"phone" json:"phone"`
	// DOB and Address are descriptive only; no filter reads them.
	DOB     string `db:"dob" json:"dob,omitempty"`
	Address string `db:"address" json:"address,omitempty"`
}
