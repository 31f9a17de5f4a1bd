package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/commission"
	"github.com/stylino/fulfillment-core/internal/domain/order"
)

type orderItemView struct {
	ProductID   string          `json:"productId"`
	VariantID   string          `json:"variantId,omitempty"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type orderView struct {
	ID             string          `json:"id"`
	Status         order.Status    `json:"status"`
	PaymentStatus  string          `json:"paymentStatus"`
	Items          []orderItemView `json:"items"`
	ItemsTotal     decimal.Decimal `json:"itemsTotal"`
	ShippingAmount decimal.Decimal `json:"shippingAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	CouponCode     string          `json:"couponCode,omitempty"`
	RefID          string          `json:"refId,omitempty"`
	Gateway        string          `json:"gateway,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func toOrderView(o *order.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return orderView{
		ID:             o.ID,
		Status:         o.Status,
		PaymentStatus:  string(o.PaymentStatus),
		Items:          items,
		ItemsTotal:     o.ItemsTotal,
		ShippingAmount: o.ShippingAmount,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		CouponCode:     o.CouponCode,
		RefID:          o.RefID,
		Gateway:        o.PaymentGateway,
		CreatedAt:      o.CreatedAt,
	}
}

type commissionView struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	FromUserID string          `json:"fromUserId"`
	Level      int             `json:"level"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func toCommissionViews(cs []commission.Commission) []commissionView {
	out := make([]commissionView, 0, len(cs))
	for _, c := range cs {
		out = append(out, commissionView{
			ID:         c.ID,
			OrderID:    c.OrderID,
			FromUserID: c.FromUserID,
			Level:      c.Level,
			Amount:     c.Amount,
			Status:     c.Status,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}
