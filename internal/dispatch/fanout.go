package dispatch

import (
	"context"
	"fmt"
	"time"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const (
	SourceSend  = "send"
	SourceSweep = "sweep"
)

// DeliveryRecorder receives one event per channel attempt. Implementations
// must not block delivery on their own failures.
type DeliveryRecorder interface {
	Record(ctx context.Context, event models.DeliveryEvent)
}

// Report is the per-channel outcome of one fan-out, in request order.
type Report struct {
	Events []models.DeliveryEvent
}

// Count returns how many channels ended with the given outcome.
func (r Report) Count(o models.DeliveryOutcome) int {
	n := 0
	for _, e := range r.Events {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// FanOut delivers one notification over each of its channels. Channels are
// isolated from each other: a failed or panicking sender is recorded and the
// remaining channels still run.
type FanOut struct {
	registry *Registry
	recorder DeliveryRecorder
	logger   logger.Logger
	obs      *observability.Observability
	now      func() time.Time
}

func NewFanOut(registry *Registry, recorder DeliveryRecorder, log logger.Logger, obs *observability.Observability) *FanOut {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &FanOut{
		registry: registry,
		recorder: recorder,
		logger:   logger.Component(log, "fanout"),
		obs:      obs,
		now:      time.Now,
	}
}

// Deliver attempts every channel of n for user. Channel failures never
// produce an error; only a nil user or an invalid channel set does.
func (f *FanOut) Deliver(ctx context.Context, n *models.Notification, user *models.User, source string) (Report, error) {
	if user == nil {
		return Report{}, errors.NewInvalidArgumentError("user is required for delivery")
	}
	if err := n.Channels.Validate(); err != nil {
		return Report{}, errors.NewInvalidArgumentError(err.Error())
	}

	ctx, span := f.obs.StartSpan(ctx, "dispatch.fanout",
		attribute.String("notification.id", n.ID),
		attribute.String("source", source),
	)
	defer span.End()

	report := Report{Events: make([]models.DeliveryEvent, 0, len(n.Channels))}
	for _, c := range n.Channels {
		event := f.deliverChannel(ctx, n, user, c)
		event.Source = source
		event.OccurredAt = f.now().UTC()

		metrics.ChannelDeliveries.WithLabelValues(string(c), string(event.Outcome)).Inc()
		if f.recorder != nil {
			f.recorder.Record(ctx, event)
		}
		report.Events = append(report.Events, event)
	}
	return report, nil
}

func (f *FanOut) deliverChannel(ctx context.Context, n *models.Notification, user *models.User, c models.Channel) (event models.DeliveryEvent) {
	event = models.DeliveryEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Channel:        c,
	}
	log := f.logger.WithFields(map[string]interface{}{
		"notificationId": n.ID,
		"channel":        string(c),
	})

	defer func() {
		if r := recover(); r != nil {
			err := errors.NewChannelDeliveryFailedError(string(c), fmt.Errorf("panic: %v", r))
			log.Error("channel sender panicked", map[string]interface{}{"error": err})
			event.Outcome = models.OutcomeFailed
			event.Reason = err.Details
		}
	}()

	route, ok := f.registry.Route(c)
	if !ok {
		log.Warn("channel not configured, skipping", nil)
		event.Outcome = models.OutcomeSkipped
		event.Reason = "channel not configured"
		return event
	}

	dests, err := route.Resolve(ctx, user)
	if err != nil {
		err = errors.NewChannelDeliveryFailedError(string(c), err)
		log.Error("destination lookup failed", map[string]interface{}{"error": err})
		event.Outcome = models.OutcomeFailed
		event.Reason = err.Error()
		return event
	}
	if len(dests) == 0 {
		log.Debug("no destination for channel, skipping", nil)
		event.Outcome = models.OutcomeSkipped
		event.Reason = "no destination"
		return event
	}

	event.Destinations = len(dests)
	for _, d := range dests {
		if attempt(ctx, log, route.Sender, d, n) {
			event.Delivered++
		}
	}

	if event.Delivered > 0 {
		event.Outcome = models.OutcomeSent
		return event
	}
	log.Warn("channel delivery failed", map[string]interface{}{"destinations": event.Destinations})
	event.Outcome = models.OutcomeFailed
	event.Reason = "all destinations failed"
	return event
}

// attempt isolates one destination so a panicking sender does not stop the
// remaining subscriptions of the same channel.
func attempt(ctx context.Context, log logger.Logger, sender channels.Sender, d channels.Destination, n *models.Notification) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("channel sender panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			ok = false
		}
	}()
	return sender.Attempt(ctx, d, n.Title, n.Message)
}
