package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded; empty when no password is set
	Admin        bool
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
