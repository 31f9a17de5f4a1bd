// Package notify is the outbound notification boundary. Delivery is
// fire-and-forget: failures are logged and never block order or payment
// outcomes.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/order"
)

// Notifier delivers buyer-facing notifications.
type Notifier interface {
	OrderPaid(ctx context.Context, o *order.Order) error
}

// LogNotifier is a Notifier that only records the event in the log. It stands
// in for the real email/SMS provider, which lives outside this core.
type LogNotifier struct{}

// OrderPaid logs the paid order.
func (LogNotifier) OrderPaid(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("order paid",
		zap.String("order_id", o.ID),
		zap.String("total", o.TotalAmount.String()),
	)
	return nil
}
