package models

import "time"

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           int       `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"fullName"`
	Bio          string    `db:"bio" json:"bio"`
	ProfilePic   string    `db:"profile_pic" json:"profilePic"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
