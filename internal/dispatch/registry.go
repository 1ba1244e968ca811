package dispatch

import (
	"context"
	"strings"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/models"
)

// ResolveFunc lists the destinations a user has on one channel. An empty
// result means the channel's precondition is not met and it is skipped.
type ResolveFunc func(ctx context.Context, user *models.User) ([]channels.Destination, error)

// Route binds a channel to its sender and destination resolver.
type Route struct {
	Sender  channels.Sender
	Resolve ResolveFunc
}

// Registry maps channel tags to routes. Adding a channel is a Register call.
type Registry struct {
	routes map[models.Channel]Route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[models.Channel]Route)}
}

func (r *Registry) Register(c models.Channel, route Route) {
	r.routes[c] = route
}

func (r *Registry) Route(c models.Channel) (Route, bool) {
	route, ok := r.routes[c]
	return route, ok
}

// SubscriptionFinder reads push registrations.
type SubscriptionFinder interface {
	FindSubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
}

// Senders groups the per-channel transports. A nil sender leaves the
// channel unregistered.
type Senders struct {
	Email    channels.Sender
	SMS      channels.Sender
	WhatsApp channels.Sender
	Push     channels.Sender
}

// DefaultRegistry wires the four built-in channels.
func DefaultRegistry(s Senders, subs SubscriptionFinder) *Registry {
	r := NewRegistry()
	if s.Email != nil {
		r.Register(models.ChannelEmail, Route{Sender: s.Email, Resolve: ResolveEmail})
	}
	if s.SMS != nil {
		r.Register(models.ChannelSMS, Route{Sender: s.SMS, Resolve: ResolvePhone})
	}
	if s.WhatsApp != nil {
		r.Register(models.ChannelWhatsApp, Route{Sender: s.WhatsApp, Resolve: ResolvePhone})
	}
	if s.Push != nil && subs != nil {
		r.Register(models.ChannelPush, Route{Sender: s.Push, Resolve: ResolvePush(subs)})
	}
	return r
}

func ResolveEmail(_ context.Context, user *models.User) ([]channels.Destination, error) {
	if !user.HasEmail() {
		return nil, nil
	}
	return []channels.Destination{{Address: strings.TrimSpace(user.Email)}}, nil
}

func ResolvePhone(_ context.Context, user *models.User) ([]channels.Destination, error) {
	if !user.HasPhone() {
		return nil, nil
	}
	return []channels.Destination{{Address: strings.TrimSpace(user.Phone)}}, nil
}

// ResolvePush returns one destination per registered subscription.
func ResolvePush(subs SubscriptionFinder) ResolveFunc {
	return func(ctx context.Context, user *models.User) ([]channels.Destination, error) {
		found, err := subs.FindSubscriptionsByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		out := make([]channels.Destination, 0, len(found))
		for _, s := range found {
			out = append(out, channels.Destination{Endpoint: s.Endpoint, P256dh: s.P256dh, Auth: s.Auth})
		}
		return out, nil
	}
}
