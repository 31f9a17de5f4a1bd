package handler

import (
	"net/http"

	"github.com/stylino/fulfillment-core/internal/domain/order"
	"github.com/stylino/fulfillment-core/internal/domain/payment"
	"github.com/stylino/fulfillment-core/internal/domain/pricing"
)

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	CouponCode       string `json:"couponCode"`
	ShippingMethodID string `json:"shippingMethodId"`
	AddressID        string `json:"addressId"`
	Guest            *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"guest"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	if !decode(w, r, &body) {
		return
	}

	req := order.PlaceOrderRequest{
		CustomerID:       requester(r).UserID,
		CouponCode:       body.CouponCode,
		ShippingMethodID: body.ShippingMethodID,
		AddressID:        body.AddressID,
	}
	for _, it := range body.Items {
		req.Items = append(req.Items, pricing.LineItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	if body.Guest != nil {
		req.Guest = &order.GuestInfo{
			Name:  body.Guest.Name,
			Email: body.Guest.Email,
			Phone: body.Guest.Phone,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderView(o))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	if id.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	list, err := h.orderRepo.ListForCustomer(r.Context(), id.UserID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	views := make([]orderView, 0, len(list))
	for i := range list {
		views = append(views, toOrderView(&list[i]))
	}
	writeJSON(w, r, http.StatusOK, views)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	if id.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	o, err := h.payments.ConfirmPayment(r.Context(), payment.ConfirmRequest{
		OrderID:     r.PathValue("id"),
		RequestedBy: id.UserID,
		IsAdmin:     id.IsAdmin,
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderView(o))
}

func (h *Handler) myCommissions(w http.ResponseWriter, r *http.Request) {
	id := requester(r)
	if id.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	list, err := h.commissions.ListForUser(r.Context(), id.UserID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCommissionViews(list))
}
