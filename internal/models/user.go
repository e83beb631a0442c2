package models

// Profile is the public view of an identity. It never carries credentials.
type Profile struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name,omitempty" db:"name"`
	Email string `json:"email,omitempty" db:"email"`
}
