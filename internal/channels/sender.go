// Package channels holds one Sender per delivery mechanism. A Sender makes a
// single delivery attempt to a single destination and reports success as a
// bool; transport errors are logged here and never returned.
package channels

import (
	"context"
)

// Destination addresses one recipient on one channel. Address carries the
// email address or phone number; push destinations use the subscription
// fields instead.
type Destination struct {
	Address  string
	Endpoint string
	P256dh   string
	Auth     string
}

type Sender interface {
	Attempt(ctx context.Context, dest Destination, subject, body string) bool
}
