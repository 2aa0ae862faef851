package sms

import (
	"context"

	"poolmate/internal/utils"
	"poolmate/pkg/logger"

	"github.com/google/uuid"
)

// LogProvider writes messages to the log instead of sending them. It backs
// the "none" provider.
type LogProvider struct {
	logger *logger.Logger
}

func NewLogProvider(log *logger.Logger) *LogProvider {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogProvider{logger: log.WithField("component", "sms")}
}

func (l *LogProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	id := uuid.NewString()
	l.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"to":         utils.MaskPhone(request.To),
		"message_id": id,
		"length":     len(request.Message),
	}).Info("SMS suppressed")

	return &SMSResponse{MessageID: id, Status: "logged"}, nil
}

func (l *LogProvider) SendBulkSMS(ctx context.Context, requests []*SMSRequest) ([]*SMSResponse, error) {
	return sendEach(ctx, l, requests)
}
