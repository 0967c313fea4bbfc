package models

import "time"

// User is an account that owns a roster of students.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Info returns the user without credentials.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, Email: u.Email}
}
