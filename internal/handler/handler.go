// Package handler exposes the fulfillment core over a thin JSON surface.
// Authentication and request validation live upstream; the requester identity
// arrives in trusted headers set by that layer.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/payment"
	"github.com/stylino/fulfillment-core/internal/domain/user"
)

// Handler routes HTTP requests to the order and payment services.
type Handler struct {
	orders      *order.Service
	payments    *payment.Service
	orderRepo   order.Repository
	commissions commission.Repository
	resultURL   string
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PaymentResultURL is the frontend page users land on after a gateway
	// callback, e.g. https://shop.example.com/payment/result.
	PaymentResultURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	orders *order.Service,
	payments *payment.Service,
	orderRepo order.Repository,
	commissions commission.Repository,
) *Handler {
	return &Handler{
		orders:      orders,
		payments:    payments,
		orderRepo:   orderRepo,
		commissions: commissions,
		resultURL:   cfg.PaymentResultURL,
	}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/my", h.myOrders)
	mux.HandleFunc("POST /api/orders/{id}/pay", h.confirmPayment)
	mux.HandleFunc("GET /api/commissions/my", h.myCommissions)
	mux.HandleFunc("POST /api/payments/zarinpal/create", h.createPayment)
	mux.HandleFunc("GET /api/payments/zarinpal/callback", h.paymentCallback)
}

// identity is the requester identity injected by the upstream auth layer.
type identity struct {
	UserID  string
	IsAdmin bool
}

func requester(r *http.Request) identity {
	return identity{
		UserID:  r.Header.Get("X-User-Id"),
		IsAdmin: r.Header.Get("X-User-Role") == string(user.RoleAdmin),
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
