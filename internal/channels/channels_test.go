package channels

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commonhttp "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Email
// ==========================

func TestEmailSender_Attempt(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	sender := NewEmailSender(mock, "noreply@rentals.example", "transactional", logger.NewTestLogger(t))

	ok := sender.Attempt(context.Background(), Destination{Address: "ana@example.com"}, "Order shipped", "On its way")

	require.True(t, ok)
	require.NotNil(t, captured)
	assert.Equal(t, []string{"ana@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "Order shipped", aws.ToString(captured.Message.Subject.Data))
	assert.Equal(t, "On its way", aws.ToString(captured.Message.Body.Text.Data))
	assert.Equal(t, "noreply@rentals.example", aws.ToString(captured.Source))
	assert.Equal(t, "transactional", aws.ToString(captured.ConfigurationSetName))
}

func TestEmailSender_Failures(t *testing.T) {
	calls := 0
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			calls++
			return nil, stderrors.New("MessageRejected")
		},
	}
	sender := NewEmailSender(mock, "noreply@rentals.example", "", logger.NewTestLogger(t))

	assert.False(t, sender.Attempt(context.Background(), Destination{}, "s", "b"))
	assert.Equal(t, 0, calls)

	assert.False(t, sender.Attempt(context.Background(), Destination{Address: "ana@example.com"}, "s", "b"))
	assert.Equal(t, 1, calls)
}

// ==========================
// SMS
// ==========================

func TestSMSSender_Attempt(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: aws.String("sms-1")}, nil
		},
	}
	sender := NewSMSSender(mock, "RENTALS", "Transactional", logger.NewTestLogger(t))

	require.True(t, sender.Attempt(context.Background(), Destination{Address: "+15550100"}, "ignored", "Your device is due back"))
	assert.Equal(t, "+15550100", aws.ToString(captured.PhoneNumber))
	assert.Equal(t, "Your device is due back", aws.ToString(captured.Message))
	assert.Equal(t, "Transactional", aws.ToString(captured.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "RENTALS", aws.ToString(captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSMSSender_PublishError(t *testing.T) {
	mock := &MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, stderrors.New("throttled")
		},
	}
	sender := NewSMSSender(mock, "", "", logger.NewTestLogger(t))

	assert.False(t, sender.Attempt(context.Background(), Destination{Address: "+15550100"}, "", "body"))
}

// ==========================
// WhatsApp
// ==========================

func TestWhatsAppSender_Attempt(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody whatsAppMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	sender := NewWhatsAppSender(commonhttp.NewClient(5*time.Second), server.URL+"/", "10001", "token-1", logger.NewTestLogger(t))

	require.True(t, sender.Attempt(context.Background(), Destination{Address: "+15550100"}, "ignored", "Service due tomorrow"))
	assert.Equal(t, "/10001/messages", gotPath)
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "15550100", gotBody.To)
	assert.Equal(t, "Service due tomorrow", gotBody.Text.Body)
}

func TestWhatsAppSender_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer server.Close()

	sender := NewWhatsAppSender(commonhttp.NewClient(5*time.Second), server.URL, "10001", "token-1", logger.NewTestLogger(t))

	assert.False(t, sender.Attempt(context.Background(), Destination{Address: "+15550100"}, "", "body"))
	assert.False(t, sender.Attempt(context.Background(), Destination{}, "", "body"))
}

// ==========================
// Push
// ==========================

func fakePushResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestPushSender_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   bool
	}{
		{name: "created", status: http.StatusCreated, want: true},
		{name: "expired subscription", status: http.StatusGone, want: false},
		{name: "unknown subscription", status: http.StatusNotFound, want: false},
		{name: "rate limited", status: http.StatusTooManyRequests, want: false},
		{name: "transport error", err: stderrors.New("dial tcp: refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewPushSender(PushConfig{Subscriber: "ops@rentals.example", TTL: 60}, logger.NewTestLogger(t))
			sender.send = func(_ context.Context, message []byte, s *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://push.example/sub", s.Endpoint)
				assert.Equal(t, 60, opts.TTL)
				assert.JSONEq(t, `{"title":"Hi","body":"There"}`, string(message))
				if tt.err != nil {
					return nil, tt.err
				}
				return fakePushResponse(tt.status), nil
			}

			got := sender.Attempt(context.Background(), Destination{Endpoint: "https://push.example/sub", P256dh: "k", Auth: "a"}, "Hi", "There")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPushSender_EncryptsForSubscription(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	clientKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	authSecret := make([]byte, 16)
	_, err = rand.Read(authSecret)
	require.NoError(t, err)

	var gotEncoding, gotAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		gotAuthorization = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := NewPushSender(PushConfig{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Subscriber:      "ops@rentals.example",
		TTL:             30,
		Urgency:         "high",
		HTTPClient:      server.Client(),
	}, logger.NewTestLogger(t))

	ok := sender.Attempt(context.Background(), Destination{
		Endpoint: server.URL + "/push/abc",
		P256dh:   base64.RawURLEncoding.EncodeToString(clientKey.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(authSecret),
	}, "Rental expiring", "Return by Friday")

	require.True(t, ok)
	assert.Equal(t, "aes128gcm", gotEncoding)
	assert.True(t, strings.HasPrefix(gotAuthorization, "vapid t="))
}
