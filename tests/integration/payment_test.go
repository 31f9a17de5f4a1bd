//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func placeOrder(t *testing.T, userID string, items []orderItemRequest) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/orders", orderRequest{Items: items}, userID)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", resp.StatusCode)
	}
	return decodeBody[orderResponse](t, resp)
}

func TestConfirmPayment_OwnerFlow(t *testing.T) {
	o := placeOrder(t, buyerID, []orderItemRequest{{ProductID: scarfID, Quantity: 1}})

	resp := doPost(t, "/api/orders/"+o.ID+"/pay", nil, buyerID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	paid := decodeBody[orderResponse](t, resp)
	if paid.PaymentStatus != "PAID" || paid.Status != "PAID" {
		t.Fatalf("expected PAID/PAID, got %s/%s", paid.Status, paid.PaymentStatus)
	}
}

func TestConfirmPayment_Forbidden(t *testing.T) {
	o := placeOrder(t, buyerID, []orderItemRequest{{ProductID: scarfID, Quantity: 1}})

	resp := doPost(t, "/api/orders/"+o.ID+"/pay", nil, grandparentID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	o := placeOrder(t, buyerID, []orderItemRequest{{ProductID: scarfID, Quantity: 1}})

	first := doPost(t, "/api/orders/"+o.ID+"/pay", nil, buyerID)
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first confirm: expected 200, got %d", first.StatusCode)
	}

	second := doPost(t, "/api/orders/"+o.ID+"/pay", nil, buyerID)
	defer second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("second confirm: expected 200, got %d", second.StatusCode)
	}
	paid := decodeBody[orderResponse](t, second)
	if paid.PaymentStatus != "PAID" {
		t.Fatalf("expected PAID, got %s", paid.PaymentStatus)
	}
}

func TestConfirmPayment_CommissionFanOut(t *testing.T) {
	before := listCommissions(t, parentID)

	o := placeOrder(t, buyerID, []orderItemRequest{{ProductID: trousersID, Quantity: 2}})
	resp := doPost(t, "/api/orders/"+o.ID+"/pay", nil, buyerID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", resp.StatusCode)
	}

	// Double-confirm; the repeat must not create more commissions.
	again := doPost(t, "/api/orders/"+o.ID+"/pay", nil, buyerID)
	again.Body.Close()

	after := listCommissions(t, parentID)
	var mine []commissionResponse
	for _, c := range after {
		if c.OrderID == o.ID {
			mine = append(mine, c)
		}
	}
	if len(mine) != 1 {
		t.Fatalf("expected exactly 1 level-1 commission for the order, got %d", len(mine))
	}
	if mine[0].Level != 1 {
		t.Fatalf("expected level 1, got %d", mine[0].Level)
	}
	// 10% of 2 x 350000.
	if mine[0].Amount != "70000" {
		t.Fatalf("level 1 amount: want 70000, got %s", mine[0].Amount)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("commission count: want %d, got %d", len(before)+1, len(after))
	}

	// Grandparent receives the level-2 cut.
	for _, c := range listCommissions(t, grandparentID) {
		if c.OrderID == o.ID {
			if c.Level != 2 || c.Amount != "35000" {
				t.Fatalf("level 2: want 35000 at level 2, got %s at level %d", c.Amount, c.Level)
			}
			return
		}
	}
	t.Fatal("no level-2 commission found for grandparent")
}

func listCommissions(t *testing.T, userID string) []commissionResponse {
	t.Helper()

	resp := doGet(t, "/api/commissions/my", userID)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list commissions: expected 200, got %d", resp.StatusCode)
	}
	return decodeBody[[]commissionResponse](t, resp)
}
