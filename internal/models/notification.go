// internal/models/notification.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the persisted lifecycle state of a notification.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// IsTerminal reports whether no further transition is defined from s.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// CanTransitionTo reports whether s -> to is a valid status change.
// Only PENDING may move, and only to a terminal state.
func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

// Type is the category tag carried for client-side routing/display.
type Type string

const (
	TypeOrderUpdate     Type = "order-update"
	TypeServiceReminder Type = "service-reminder"
	TypePromotion       Type = "promotion"
	TypePaymentReminder Type = "payment-reminder"
	TypeRentalExpiry    Type = "rental-expiry"
	TypeSystem          Type = "system"
)

var knownTypes = map[Type]bool{
	TypeOrderUpdate:     true,
	TypeServiceReminder: true,
	TypePromotion:       true,
	TypePaymentReminder: true,
	TypeRentalExpiry:    true,
	TypeSystem:          true,
}

func (t Type) Valid() bool {
	return knownTypes[t]
}

// Channel is one delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

// AllChannels lists every channel tag in canonical order.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush}

func (c Channel) Valid() bool {
	for _, known := range AllChannels {
		if c == known {
			return true
		}
	}
	return false
}

// ChannelSet is an ordered set of requested channels.
type ChannelSet []Channel

// ParseChannels builds a ChannelSet from raw tags, keeping first-seen order
// and dropping duplicates. Unknown or empty tags are rejected.
func ParseChannels(raw []string) (ChannelSet, error) {
	seen := make(map[Channel]bool, len(raw))
	out := make(ChannelSet, 0, len(raw))
	for _, r := range raw {
		c := Channel(strings.ToLower(strings.TrimSpace(r)))
		if !c.Valid() {
			return nil, fmt.Errorf("unknown channel %q, want one of %v", r, AllChannels)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// Validate checks that the set is non-empty and holds only known tags.
func (cs ChannelSet) Validate() error {
	if len(cs) == 0 {
		return fmt.Errorf("channel set is empty")
	}
	for _, c := range cs {
		if !c.Valid() {
			return fmt.Errorf("unknown channel %q", c)
		}
	}
	return nil
}

// Strings is the storage form of the set.
func (cs ChannelSet) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Notification is one logical notice for one user over one or more channels.
type Notification struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Type          Type       `json:"type"`
	ReferenceID   string     `json:"referenceId,omitempty"`
	ReferenceType string     `json:"referenceType,omitempty"`
	Channels      ChannelSet `json:"channels"`
	Status        Status     `json:"status"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// DeliveryOutcome is the result of one channel attempt during fan-out.
type DeliveryOutcome string

const (
	OutcomeSent    DeliveryOutcome = "sent"
	OutcomeFailed  DeliveryOutcome = "failed"
	OutcomeSkipped DeliveryOutcome = "skipped"
)

// DeliveryEvent describes one channel attempt for a notification. It is not
// persisted with the notification; it feeds logs, metrics and the audit index.
type DeliveryEvent struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Type           Type            `json:"type"`
	Channel        Channel         `json:"channel"`
	Outcome        DeliveryOutcome `json:"outcome"`
	Destinations   int             `json:"destinations"`
	Delivered      int             `json:"delivered"`
	Reason         string          `json:"reason,omitempty"`
	Source         string          `json:"source"` // "send" or "sweep"
	OccurredAt     time.Time       `json:"occurredAt"`
}
