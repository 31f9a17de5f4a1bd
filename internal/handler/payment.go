package handler

import (
	"net/http"
	"net/url"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/stylino/fulfillment-core/internal/domain/payment"
)

type createPaymentRequest struct {
	OrderID     string `json:"orderId"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
}

type createPaymentResponse struct {
	Authority  string `json:"authority"`
	PaymentURL string `json:"paymentUrl"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	if id.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var body createPaymentRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := h.payments.Initiate(r.Context(), payment.InitiateRequest{
		OrderID:     body.OrderID,
		RequestedBy: id.UserID,
		IsAdmin:     id.IsAdmin,
		Description: body.Description,
		Email:       body.Email,
		Mobile:      body.Mobile,
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, createPaymentResponse{
		Authority:  res.Authority,
		PaymentURL: res.PaymentURL,
	})
}

// paymentCallback is hit by the gateway redirecting the user's browser back.
// It always redirects to the frontend result page; the outcome travels in
// query parameters.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	authority := r.URL.Query().Get("Authority")
	ok := r.URL.Query().Get("Status") == "OK"

	if authority == "" {
		h.redirectResult(w, r, url.Values{"success": {"false"}, "message": {"missing authority"}})
		return
	}

	res, err := h.payments.HandleCallback(r.Context(), authority, ok)
	if err != nil {
		zctx.From(r.Context()).Warn("payment callback failed",
			zap.String("authority", authority), zap.Error(err))
		h.redirectResult(w, r, url.Values{"success": {"false"}, "message": {"payment verification failed"}})
		return
	}

	q := url.Values{
		"success": {boolParam(res.Success)},
		"orderId": {res.Order.ID},
	}
	if res.RefID != "" {
		q.Set("refId", res.RefID)
	}
	if !res.Success && res.Message != "" {
		q.Set("message", res.Message)
	}
	h.redirectResult(w, r, q)
}

func (h *Handler) redirectResult(w http.ResponseWriter, r *http.Request, q url.Values) {
	http.Redirect(w, r, h.resultURL+"?"+q.Encode(), http.StatusFound)
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
