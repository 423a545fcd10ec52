package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never expose this to the client
	ProfileImage string    `db:"profile_image" json:"profileImage"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
