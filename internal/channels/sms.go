package channels

import (
	"context"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender delivers text messages through Amazon SNS direct publish.
type SMSSender struct {
	client   SNSService
	senderID string
	smsType  string
	logger   logger.Logger
}

func NewSMSSender(client SNSService, senderID, smsType string, log logger.Logger) *SMSSender {
	return &SMSSender{
		client:   client,
		senderID: senderID,
		smsType:  smsType,
		logger:   logger.Component(log, "channel.sms"),
	}
}

// Attempt sends body only; SMS has no subject line.
func (s *SMSSender) Attempt(ctx context.Context, dest Destination, _, body string) bool {
	if dest.Address == "" {
		return false
	}

	attrs := map[string]types.MessageAttributeValue{}
	if s.smsType != "" {
		attrs["AWS.SNS.SMS.SMSType"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.smsType),
		}
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(dest.Address),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		s.logger.Error("SMS send failed", map[string]interface{}{
			"error": errors.NewChannelDeliveryFailedError("sms", err),
			"phone": dest.Address,
		})
		return false
	}

	s.logger.Debug("SMS sent", map[string]interface{}{
		"phone":     dest.Address,
		"messageId": aws.ToString(out.MessageId),
	})
	return true
}
