package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/notify"
)

// Service is the payment confirmation coordinator. It owns the guarded
// UNPAID to PAID transition and everything that must commit with it.
type Service struct {
	store    TxStore
	orders   order.Repository
	gateway  Gateway
	engine   *commission.Engine
	notifier notify.Notifier
}

// NewService creates a payment Service. orders is a non-transactional
// repository handle used for reads outside the confirmation transaction.
func NewService(
	store TxStore,
	orders order.Repository,
	gateway Gateway,
	engine *commission.Engine,
	notifier notify.Notifier,
) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		gateway:  gateway,
		engine:   engine,
		notifier: notifier,
	}
}

// ConfirmRequest holds the input for confirming a payment. Details carries
// gateway-supplied fields when confirmation follows a verified gateway
// callback; it is nil for manual confirmation.
type ConfirmRequest struct {
	OrderID     string
	RequestedBy string
	IsAdmin     bool
	Details     *order.GatewayDetails
}

// ConfirmPayment transitions the order to PAID exactly once. An already-paid
// order is returned unchanged with no side effects. The status update, the
// payment transaction record, and the commission fan-out commit atomically:
// an order is never PAID without its commissions, and vice versa.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*order.Order, error) {
	var (
		confirmed  *order.Order
		transition bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		transition = false

		o, err := tx.Orders().GetByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !req.IsAdmin && (o.CustomerID == nil || *o.CustomerID != req.RequestedBy) {
			return ErrForbidden
		}

		if o.PaymentStatus == order.PaymentPaid {
			// Idempotent read: a repeated confirmation observes the terminal
			// state and short-circuits.
			confirmed = o
			return nil
		}

		if err := o.MarkPaid(req.Details); err != nil {
			return err
		}
		if err := tx.Orders().UpdatePayment(ctx, o); err != nil {
			return errors.Wrap(err, "update order payment")
		}

		if req.Details != nil {
			t := &Transaction{
				ID:        uuid.New().String(),
				OrderID:   o.ID,
				Authority: req.Details.Authority,
				RefID:     req.Details.RefID,
				Gateway:   req.Details.Gateway,
				Amount:    o.TotalAmount,
				Status:    StatusSuccess,
			}
			if err := tx.Payments().Create(ctx, t); err != nil {
				return errors.Wrap(err, "record payment transaction")
			}
		}

		if o.CustomerID == nil {
			// Guest checkout: no buyer account, so no referral chain and no
			// commissions.
			confirmed = o
			transition = true
			return nil
		}

		_, err = s.engine.Pay(ctx, tx.Users(), tx.Commissions(), *o.CustomerID, o.ID, o.TotalAmount)
		if err != nil {
			return errors.Wrap(err, "pay commissions")
		}

		confirmed = o
		transition = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transition {
		if nerr := s.notifier.OrderPaid(ctx, confirmed); nerr != nil {
			zctx.From(ctx).Warn("order paid notification failed",
				zap.String("order_id", confirmed.ID),
				zap.Error(nerr),
			)
		}
	}
	return confirmed, nil
}

// InitiateRequest holds the input for starting a gateway payment attempt.
type InitiateRequest struct {
	OrderID     string
	RequestedBy string
	IsAdmin     bool
	Description string
	Email       string
	Mobile      string
}

// Initiate starts a payment attempt at the gateway for an unpaid order and
// records the issued authority on the order. The order's own total is
// authoritative; callers cannot influence the charged amount.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin && (o.CustomerID == nil || *o.CustomerID != req.RequestedBy) {
		return nil, ErrForbidden
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, order.ErrAlreadyPaid
	}

	res, err := s.gateway.Initiate(ctx, o.ID, o.TotalAmount, req.Description, req.Email, req.Mobile)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetAuthority(ctx, o.ID, res.Authority, s.gateway.Name()); err != nil {
		return nil, errors.Wrap(err, "record gateway authority")
	}
	return res, nil
}

// CallbackResult is the outcome of processing a gateway callback.
type CallbackResult struct {
	Order   *order.Order
	Success bool
	Message string
	RefID   string
}

// HandleCallback resolves the order by gateway authority, verifies the
// payment with the gateway when the user-facing status is OK, and either
// confirms the payment or records the failure.
func (s *Service) HandleCallback(ctx context.Context, authority string, ok bool) (*CallbackResult, error) {
	o, err := s.orders.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}

	if !ok {
		return s.failOrder(ctx, o, "payment canceled by user")
	}

	vr, err := s.gateway.Verify(ctx, authority, o.TotalAmount, o.ID)
	if err != nil {
		// Gateway unreachable or declined at protocol level: record the
		// failure but surface the gateway error to the caller.
		if _, ferr := s.failOrder(ctx, o, err.Error()); ferr != nil {
			zctx.From(ctx).Error("record payment failure",
				zap.String("order_id", o.ID), zap.Error(ferr))
		}
		return nil, err
	}

	if !vr.Success {
		return s.failOrder(ctx, o, vr.Message)
	}

	confirmed, err := s.ConfirmPayment(ctx, ConfirmRequest{
		OrderID: o.ID,
		// Verified gateway callbacks confirm with admin authority; the money
		// has already moved.
		IsAdmin: true,
		Details: &order.GatewayDetails{
			Authority: authority,
			RefID:     vr.RefID,
			CardPan:   vr.CardPan,
			Fee:       vr.Fee,
			Gateway:   s.gateway.Name(),
			Message:   vr.Message,
		},
	})
	if err != nil {
		return nil, err
	}
	return &CallbackResult{
		Order:   confirmed,
		Success: true,
		Message: vr.Message,
		RefID:   vr.RefID,
	}, nil
}

func (s *Service) failOrder(ctx context.Context, o *order.Order, message string) (*CallbackResult, error) {
	if err := o.MarkFailed(message); err != nil {
		if errors.Is(err, order.ErrAlreadyPaid) {
			// A verified payment beat this failure report; keep the order paid.
			return &CallbackResult{Order: o, Success: true}, nil
		}
		return nil, err
	}
	if err := s.orders.UpdatePayment(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order payment")
	}
	return &CallbackResult{Order: o, Success: false, Message: message}, nil
}
