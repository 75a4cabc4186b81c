package shopifysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

type fakeGateway struct {
	pages        [][]shopifyOrder
	listSinceIds []string
	transactions map[string][]shopifyTransaction
	refunds      map[string][]shopifyRefund
	txErr        error
	refundsErr   error
}

func (f *fakeGateway) ListOrders(ctx context.Context, sinceId string) ([]shopifyOrder, error) {
	f.listSinceIds = append(f.listSinceIds, sinceId)
	call := len(f.listSinceIds) - 1
	if call >= len(f.pages) {
		return nil, nil
	}
	return f.pages[call], nil
}

func (f *fakeGateway) GetTransactions(ctx context.Context, orderId string) ([]shopifyTransaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.transactions[orderId], nil
}

func (f *fakeGateway) GetRefunds(ctx context.Context, orderId string) ([]shopifyRefund, error) {
	if f.refundsErr != nil {
		return nil, f.refundsErr
	}
	return f.refunds[orderId], nil
}

func makeOrders(startId, count int) []shopifyOrder {
	orders := make([]shopifyOrder, 0, count)
	for i := 0; i < count; i++ {
		orders = append(orders, shopifyOrder{
			ID: json.Number(fmt.Sprint(startId + i)),
		})
	}
	return orders
}

func TestWalkOrders_PaginatesWithSinceId(t *testing.T) {
	gw := &fakeGateway{
		pages: [][]shopifyOrder{
			makeOrders(1, 250),
			makeOrders(251, 10),
		},
	}

	visited := 0
	total, err := walkOrders(context.Background(), gw, func(o shopifyOrder) error {
		visited++
		return nil
	})
	if err != nil {
		t.Fatalf("walkOrders: %v", err)
	}
	if total != 260 || visited != 260 {
		t.Fatalf("expected 260 orders visited, got total=%d visited=%d", total, visited)
	}
	if len(gw.listSinceIds) != 2 {
		t.Fatalf("expected exactly 2 listing calls, got %d", len(gw.listSinceIds))
	}
	if gw.listSinceIds[0] != "" {
		t.Fatalf("first call must start from the beginning, got since_id=%q", gw.listSinceIds[0])
	}
	if gw.listSinceIds[1] != "250" {
		t.Fatalf("second call must resume after the last order of page 1, got since_id=%q", gw.listSinceIds[1])
	}
}

func TestWalkOrders_ShortPageEndsWalk(t *testing.T) {
	gw := &fakeGateway{
		pages: [][]shopifyOrder{makeOrders(1, 10)},
	}

	total, err := walkOrders(context.Background(), gw, func(o shopifyOrder) error { return nil })
	if err != nil {
		t.Fatalf("walkOrders: %v", err)
	}
	if total != 10 {
		t.Fatalf("expected 10 orders, got %d", total)
	}
	if len(gw.listSinceIds) != 1 {
		t.Fatalf("expected 1 listing call, got %d", len(gw.listSinceIds))
	}
}

func TestWalkOrders_EmptyStore(t *testing.T) {
	gw := &fakeGateway{}

	total, err := walkOrders(context.Background(), gw, func(o shopifyOrder) error { return nil })
	if err != nil {
		t.Fatalf("walkOrders: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 orders, got %d", total)
	}
	if len(gw.listSinceIds) != 1 {
		t.Fatalf("expected 1 listing call, got %d", len(gw.listSinceIds))
	}
}

func TestWalkOrders_StopsOnCallbackError(t *testing.T) {
	gw := &fakeGateway{
		pages: [][]shopifyOrder{
			makeOrders(1, 250),
			makeOrders(251, 10),
		},
	}

	boom := errors.New("order 5 is broken")
	visited := 0
	total, err := walkOrders(context.Background(), gw, func(o shopifyOrder) error {
		visited++
		if o.ID.String() == "5" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 orders landed before the abort, got %d", total)
	}
	if visited != 5 {
		t.Fatalf("expected the walk to stop at order 5, visited %d", visited)
	}
	if len(gw.listSinceIds) != 1 {
		t.Fatalf("expected no further listing after the failure, got %d calls", len(gw.listSinceIds))
	}
}

func TestFetchPayments_FiltersKindAndStatus(t *testing.T) {
	gw := &fakeGateway{
		transactions: map[string][]shopifyTransaction{
			"42": {
				{ID: "1", Kind: "sale", Status: "success", Amount: "10.00"},
				{ID: "2", Kind: "capture", Status: "success", Amount: "20.00"},
				{ID: "3", Kind: "authorization", Status: "success", Amount: "30.00"},
				{ID: "4", Kind: "refund", Status: "success", Amount: "5.00"},
				{ID: "5", Kind: "sale", Status: "failure", Amount: "7.00"},
				{ID: "6", Kind: "void", Status: "success", Amount: "1.00"},
			},
		},
	}

	payments, err := fetchPayments(context.Background(), gw, "42")
	if err != nil {
		t.Fatalf("fetchPayments: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(payments))
	}
	for _, p := range payments {
		if p.Status != "success" {
			t.Fatalf("unexpected status %q", p.Status)
		}
		if p.Kind == "refund" || p.Kind == "void" {
			t.Fatalf("unexpected kind %q", p.Kind)
		}
	}
}
