package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kseleznov/toolshed/internal/core/port"
	"github.com/kseleznov/toolshed/internal/infra/logger"
)

// LoggingDispatcher records code dispatches in the service log instead of
// calling a messaging provider. It stands in for the real out-of-band
// integration in development and in tests.
type LoggingDispatcher struct {
	log     *zap.Logger
	codeTTL time.Duration
}

// NewLoggingDispatcher constructs a development-friendly code sender.
func NewLoggingDispatcher(log *zap.Logger, codeTTL time.Duration) *LoggingDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingDispatcher{log: log, codeTTL: codeTTL}
}

// SendCode logs the dispatch with the destination masked. The code itself is
// logged in full: this sender only exists where no real channel is wired.
func (d *LoggingDispatcher) SendCode(_ context.Context, deliveryID, code string) error {
	if deliveryID == "" {
		return fmt.Errorf("delivery id is required")
	}

	d.log.Info("verification code dispatched",
		zap.String("delivery_id", logger.MaskDeliveryID(deliveryID)),
		zap.String("code", code),
		zap.Duration("valid_for", d.codeTTL),
	)
	return nil
}

var _ port.CodeSender = (*LoggingDispatcher)(nil)
