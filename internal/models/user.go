package models

import (
	"strings"
	"time"
)

// User is the slice of the user directory the dispatcher needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// HasEmail and HasPhone ignore blank values.
func (u *User) HasEmail() bool { return u != nil && strings.TrimSpace(u.Email) != "" }

func (u *User) HasPhone() bool { return u != nil && strings.TrimSpace(u.Phone) != "" }

// PushSubscription is one registered device. Rows are owned by the device
// registration flow and only read here.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}
