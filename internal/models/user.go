package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	// ExternalID references the account on the upstream messaging platform.
	ExternalID string `json:"external_id,omitempty"`

	StarsBalance int64 `json:"stars_balance"`
}
