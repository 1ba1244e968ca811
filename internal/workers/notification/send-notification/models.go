package sendnotification

import (
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/models"
)

// Input is the job variable shape. scheduledAt is an RFC 3339 string because
// process variables carry no time type.
type Input struct {
	UserID        string   `json:"userId"`
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Type          string   `json:"type"`
	Channels      []string `json:"channels"`
	ReferenceID   string   `json:"referenceId,omitempty"`
	ReferenceType string   `json:"referenceType,omitempty"`
	ScheduledAt   string   `json:"scheduledAt,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	ScheduledAt    string `json:"scheduledAt,omitempty"`
}

func (in *Input) toRequest() (dispatch.SendRequest, error) {
	req := dispatch.SendRequest{
		UserID:        in.UserID,
		Title:         in.Title,
		Message:       in.Message,
		Type:          models.Type(in.Type),
		Channels:      in.Channels,
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
	}
	if in.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, in.ScheduledAt)
		if err != nil {
			return dispatch.SendRequest{}, errors.NewInvalidArgumentError("scheduledAt must be RFC 3339: " + in.ScheduledAt)
		}
		req.ScheduledAt = &at
	}
	return req, nil
}
