package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OTPCredential es el segundo factor emitido en login, independiente del usuario.
type OTPCredential struct {
	UserID    string    `json:"userId"`
	CodeHash  string    `json:"codeHash"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired indica si la credencial ya no es válida en now.
func (c OTPCredential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
