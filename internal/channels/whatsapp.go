package channels

import (
	"context"
	"fmt"
	"strings"

	"notification-dispatch/internal/common/errors"
	commonhttp "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"
)

// WhatsAppSender posts text messages to a WhatsApp Cloud API compatible gateway.
type WhatsAppSender struct {
	client        *commonhttp.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
	logger        logger.Logger
}

func NewWhatsAppSender(client *commonhttp.Client, baseURL, phoneNumberID, accessToken string, log logger.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		logger:        logger.Component(log, "channel.whatsapp"),
	}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

// Attempt sends body only; the chat message has no subject line.
func (s *WhatsAppSender) Attempt(ctx context.Context, dest Destination, _, body string) bool {
	if dest.Address == "" {
		return false
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	status, respBody, err := s.client.PostJSON(ctx, url,
		map[string]string{"Authorization": "Bearer " + s.accessToken},
		whatsAppMessage{
			MessagingProduct: "whatsapp",
			To:               strings.TrimPrefix(dest.Address, "+"),
			Type:             "text",
			Text:             whatsAppText{Body: body},
		},
	)
	if err == nil && (status < 200 || status > 299) {
		err = fmt.Errorf("gateway returned %d: %s", status, truncate(string(respBody), 256))
	}
	if err != nil {
		s.logger.Error("whatsapp send failed", map[string]interface{}{
			"error": errors.NewChannelDeliveryFailedError("whatsapp", err),
			"phone": dest.Address,
		})
		return false
	}

	s.logger.Debug("whatsapp sent", map[string]interface{}{"phone": dest.Address})
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
