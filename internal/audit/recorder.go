// Package audit indexes channel delivery events in Elasticsearch.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const indexTimeout = 2 * time.Second

// ESRecorder writes one document per delivery event. Indexing failures are
// logged and otherwise ignored.
type ESRecorder struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESRecorder(client *elasticsearch.Client, index string, log logger.Logger) *ESRecorder {
	return &ESRecorder{
		client: client,
		index:  index,
		logger: logger.Component(log, "audit"),
	}
}

func (r *ESRecorder) Record(ctx context.Context, event models.DeliveryEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to encode delivery event", map[string]interface{}{"error": err})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithContext(ctx),
	)
	if err != nil {
		r.logger.Warn("failed to index delivery event", map[string]interface{}{
			"error":          err,
			"notificationId": event.NotificationID,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("delivery event rejected by elasticsearch", map[string]interface{}{
			"status":         res.Status(),
			"notificationId": event.NotificationID,
		})
	}
}
