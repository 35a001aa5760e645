package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrSenderDisabled indica que el correo se omitió por falta de transporte.
var ErrSenderDisabled = errors.New("email sender disabled")

// Sender define el transporte de correos transaccionales.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	logger *zap.Logger
	reason string
}

// NewDisabledSender omite todo envío dejando un warning en el log.
func NewDisabledSender(logger *zap.Logger, reason string) Sender {
	return &disabledSender{logger: logger, reason: reason}
}

func (s *disabledSender) Send(_ context.Context, msg Message) error {
	if s.logger != nil {
		s.logger.Warn("email skipped",
			zap.String("reason", s.reason),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
	}
	return ErrSenderDisabled
}

// PreviewSender reemplaza al SMTP fuera de producción: el correo se escribe en el log.
type PreviewSender struct {
	logger *zap.Logger
}

func NewPreviewSender(logger *zap.Logger) *PreviewSender {
	return &PreviewSender{logger: logger}
}

func (s *PreviewSender) Send(_ context.Context, msg Message) error {
	if s.logger == nil {
		return nil
	}
	s.logger.Info("email preview",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
