package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/catalog"
	"github.com/stylino/fulfillment-core/internal/domain/coupon"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/payment"
	"github.com/stylino/fulfillment-core/internal/domain/shipping"
	"github.com/stylino/fulfillment-core/internal/gateway/zarinpal"
)

// domainError translates domain errors into HTTP responses. Unrecognized
// errors are logged and reported as 500 without leaking internals.
func (h *Handler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr   *catalog.InsufficientStockError
		variantErr *catalog.VariantNotFoundError
		qtyErr     *order.InvalidQuantityError
		gwErr      *zarinpal.GatewayError
	)

	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, payment.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "not allowed to access this order")
	case errors.Is(err, order.ErrAlreadyPaid):
		writeError(w, r, http.StatusConflict, "order is already paid")
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, r, http.StatusUnprocessableEntity, "order must contain at least one item")
	case errors.Is(err, order.ErrMissingContact):
		writeError(w, r, http.StatusUnprocessableEntity, "guest orders require name, email and phone")
	case errors.Is(err, order.ErrProductsUnavailable), errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusUnprocessableEntity, "one or more products are unavailable")
	case errors.As(err, &qtyErr):
		writeError(w, r, http.StatusUnprocessableEntity, qtyErr.Error())
	case errors.As(err, &variantErr):
		writeError(w, r, http.StatusUnprocessableEntity, variantErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, r, http.StatusConflict, stockErr.Error())
	case errors.Is(err, shipping.ErrMethodUnavailable):
		writeError(w, r, http.StatusUnprocessableEntity, "shipping method is unavailable")
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached),
		errors.Is(err, coupon.ErrMinPurchaseNotMet):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &gwErr):
		writeError(w, r, http.StatusBadGateway, "payment gateway rejected the request")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
