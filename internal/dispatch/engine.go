// Package dispatch turns a send request into a persisted notification and
// delivers it over the requested channels, now or later via the sweep.
package dispatch

import (
	"context"
	"strings"
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// UserDirectory resolves a user id to contact points. A missing user is
// reported with errors.ErrCodeUserNotFound.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// SendRequest is the input to Send.
type SendRequest struct {
	UserID        string      `json:"userId"`
	Title         string      `json:"title"`
	Message       string      `json:"message"`
	Type          models.Type `json:"type"`
	Channels      []string    `json:"channels"`
	ReferenceID   string      `json:"referenceId,omitempty"`
	ReferenceType string      `json:"referenceType,omitempty"`
	ScheduledAt   *time.Time  `json:"scheduledAt,omitempty"`
}

type EngineDependencies struct {
	Users         UserDirectory
	Store         NotificationStore
	FanOut        *FanOut
	Logger        logger.Logger
	Observability *observability.Observability
}

type Engine struct {
	users         UserDirectory
	store         NotificationStore
	fanout        *FanOut
	logger        logger.Logger
	obs           *observability.Observability
	fanOutTimeout time.Duration
	now           func() time.Time
	newID         func(time.Time) string
}

func NewEngine(deps EngineDependencies, fanOutTimeout time.Duration) *Engine {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	if fanOutTimeout <= 0 {
		fanOutTimeout = 30 * time.Second
	}
	return &Engine{
		users:         deps.Users,
		store:         deps.Store,
		fanout:        deps.FanOut,
		logger:        logger.Component(log, "engine"),
		obs:           obs,
		fanOutTimeout: fanOutTimeout,
		now:           time.Now,
		newID:         newNotificationID,
	}
}

// Send creates a notification and returns its id. A request scheduled in the
// future is stored PENDING for the sweep; anything else is stored SENT and
// delivered before Send returns. Channel failures never fail Send.
func (e *Engine) Send(ctx context.Context, req SendRequest) (string, error) {
	n, err := e.Dispatch(ctx, req)
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// Dispatch is Send returning the persisted record.
func (e *Engine) Dispatch(ctx context.Context, req SendRequest) (*models.Notification, error) {
	ctx, span := e.obs.StartSpan(ctx, "dispatch.send",
		attribute.String("user.id", req.UserID),
		attribute.String("notification.type", string(req.Type)),
	)
	defer span.End()

	channelSet, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	user, err := e.users.FindUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	n := &models.Notification{
		ID:            e.newID(now),
		UserID:        req.UserID,
		Title:         req.Title,
		Message:       req.Message,
		Type:          req.Type,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		Channels:      channelSet,
		Status:        models.StatusSent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		n.ScheduledAt = &at
	}

	deferred := n.ScheduledAt != nil && n.ScheduledAt.After(now)
	if deferred {
		n.Status = models.StatusPending
	}

	if err := e.store.Insert(ctx, n); err != nil {
		e.logger.Error("failed to persist notification", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type), string(n.Status)).Inc()

	log := e.logger.WithFields(map[string]interface{}{
		"notificationId": n.ID,
		"userId":         n.UserID,
		"status":         string(n.Status),
	})
	if deferred {
		log.Info("notification scheduled", map[string]interface{}{"scheduledAt": n.ScheduledAt.Format(time.RFC3339)})
		return n, nil
	}

	// The record is already SENT; delivery outlives a caller that goes away.
	fanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.fanOutTimeout)
	defer cancel()

	report, err := e.fanout.Deliver(fanCtx, n, user, SourceSend)
	if err != nil {
		log.Error("fan-out rejected notification", map[string]interface{}{"error": err})
		return n, nil
	}
	log.Info("notification sent", map[string]interface{}{
		"sent":    report.Count(models.OutcomeSent),
		"failed":  report.Count(models.OutcomeFailed),
		"skipped": report.Count(models.OutcomeSkipped),
	})
	return n, nil
}

func validateRequest(req SendRequest) (models.ChannelSet, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.NewInvalidArgumentError("userId is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.NewInvalidArgumentError("title is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.NewInvalidArgumentError("message is required")
	}
	if !req.Type.Valid() {
		return nil, errors.NewInvalidArgumentError("unknown notification type: " + string(req.Type))
	}

	set, err := models.ParseChannels(req.Channels)
	if err != nil {
		return nil, errors.NewInvalidArgumentError(err.Error())
	}
	if err := set.Validate(); err != nil {
		return nil, errors.NewInvalidArgumentError("channels must not be empty")
	}
	return set, nil
}
