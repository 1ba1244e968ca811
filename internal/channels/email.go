package channels

import (
	"context"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailSender delivers mail through Amazon SES.
type EmailSender struct {
	client           SESService
	from             string
	configurationSet string
	logger           logger.Logger
}

func NewEmailSender(client SESService, from, configurationSet string, log logger.Logger) *EmailSender {
	return &EmailSender{
		client:           client,
		from:             from,
		configurationSet: configurationSet,
		logger:           logger.Component(log, "channel.email"),
	}
}

func (s *EmailSender) Attempt(ctx context.Context, dest Destination, subject, body string) bool {
	if dest.Address == "" {
		return false
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{dest.Address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.from),
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("email send failed", map[string]interface{}{
			"error": errors.NewChannelDeliveryFailedError("email", err),
			"to":    dest.Address,
		})
		return false
	}

	s.logger.Debug("email sent", map[string]interface{}{
		"to":        dest.Address,
		"messageId": aws.ToString(out.MessageId),
	})
	return true
}
