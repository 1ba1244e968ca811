package dispatch

import "notification-dispatch/internal/common/validation"

// SendRequestSchema guards the shape of a send request arriving over HTTP or
// as Zeebe job variables. Semantic checks stay in validateRequest.
var SendRequestSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["userId", "title", "message", "type", "channels"],
	"properties": {
		"userId":        {"type": "string", "minLength": 1, "maxLength": 255},
		"title":         {"type": "string", "minLength": 1, "maxLength": 500},
		"message":       {"type": "string", "minLength": 1, "maxLength": 10000},
		"type":          {"type": "string", "minLength": 1},
		"channels":      {"type": "array", "items": {"type": "string"}},
		"referenceId":   {"type": "string", "maxLength": 255},
		"referenceType": {"type": "string", "maxLength": 100},
		"scheduledAt":   {"type": ["string", "null"], "format": "date-time"}
	}
}`)
