// Package auth handles account registration and cookie-session login.
package auth

import "time"

// User is an application account. The password hash never leaves the
// package.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
