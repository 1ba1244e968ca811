package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// PushSendFunc matches webpush.SendNotificationWithContext.
type PushSendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// PushConfig holds the VAPID identity used for every push request.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Urgency         string
	HTTPClient      *http.Client
}

// PushSender delivers Web Push messages to one browser/device endpoint.
type PushSender struct {
	cfg    PushConfig
	send   PushSendFunc
	logger logger.Logger
}

func NewPushSender(cfg PushConfig, log logger.Logger) *PushSender {
	return &PushSender{
		cfg:    cfg,
		send:   webpush.SendNotificationWithContext,
		logger: logger.Component(log, "channel.push"),
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *PushSender) Attempt(ctx context.Context, dest Destination, subject, body string) bool {
	if dest.Endpoint == "" {
		return false
	}

	payload, err := json.Marshal(pushPayload{Title: subject, Body: body})
	if err != nil {
		return false
	}

	opts := &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.Urgency(s.cfg.Urgency),
	}
	if s.cfg.HTTPClient != nil {
		opts.HTTPClient = s.cfg.HTTPClient
	}

	resp, err := s.send(ctx, payload, &webpush.Subscription{
		Endpoint: dest.Endpoint,
		Keys:     webpush.Keys{P256dh: dest.P256dh, Auth: dest.Auth},
	}, opts)
	if err != nil {
		s.logger.Error("push send failed", map[string]interface{}{
			"error":    errors.NewChannelDeliveryFailedError("push", err),
			"endpoint": dest.Endpoint,
		})
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		s.logger.Debug("push sent", map[string]interface{}{"endpoint": dest.Endpoint})
		return true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		s.logger.Warn("push subscription expired", map[string]interface{}{
			"endpoint": dest.Endpoint,
			"status":   resp.StatusCode,
		})
		return false
	default:
		s.logger.Error("push send failed", map[string]interface{}{
			"error":    errors.NewChannelDeliveryFailedError("push", fmt.Errorf("push service returned %d", resp.StatusCode)),
			"endpoint": dest.Endpoint,
		})
		return false
	}
}
