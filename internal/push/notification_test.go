package push

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	n, err := Parse([]byte(`{
		"title": "Your order shipped",
		"body": "Order o-17 is on its way",
		"tag": "order-o-17",
		"data": {"type": "order_update", "orderId": "o-17"},
		"actions": [{"action": "view", "title": "View"}, {"action": "dismiss", "title": "Dismiss"}],
		"requireInteraction": true,
		"vibrate": [100, 50, 100]
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Title != "Your order shipped" || n.Data.OrderID != "o-17" {
		t.Errorf("Parse() = %+v", n)
	}
	if len(n.Actions) != 2 || n.Actions[1].Action != ActionDismiss {
		t.Errorf("Actions = %+v", n.Actions)
	}
	if !n.RequireInteraction || len(n.Vibrate) != 3 {
		t.Errorf("flags not decoded: %+v", n)
	}
	if n.Icon != DefaultIcon || n.Badge != DefaultBadge {
		t.Errorf("Icon, Badge = %q, %q; want defaults", n.Icon, n.Badge)
	}
}

func TestParse_KeepsCustomData(t *testing.T) {
	n, err := Parse([]byte(`{
		"title": "Price drop",
		"data": {"type": "price_drop", "productId": "p3", "campaign": "fall", "discount": 15}
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Data.ProductID != "p3" {
		t.Errorf("ProductID = %q, want p3", n.Data.ProductID)
	}
	if got := string(n.Data.Extra["campaign"]); got != `"fall"` {
		t.Errorf("Extra[campaign] = %s, want \"fall\"", got)
	}
	if got := string(n.Data.Extra["discount"]); got != "15" {
		t.Errorf("Extra[discount] = %s, want 15", got)
	}
	if _, ok := n.Data.Extra["productId"]; ok {
		t.Error("known field productId duplicated into Extra")
	}

	out, err := json.Marshal(n.Data)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back["campaign"] != "fall" || back["productId"] != "p3" || back["discount"] != float64(15) {
		t.Errorf("Marshal() = %s, want known and custom keys", out)
	}
}

func TestParse_Empty(t *testing.T) {
	n, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if n.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", n.Title, DefaultTitle)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{`{"title":`, `not json`, `["a"]`} {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		data Data
		want string
	}{
		{"order update", Data{Type: TypeOrderUpdate, OrderID: "o-1"}, "/orders/o-1"},
		{"promotion", Data{Type: TypePromotion, PromotionID: "summer"}, "/promotions/summer"},
		{"product available", Data{Type: TypeProductAvailable, ProductID: "p1"}, "/products/p1"},
		{"back in stock", Data{Type: TypeBackInStock, ProductID: "p2"}, "/products/p2"},
		{"price drop", Data{Type: TypePriceDrop, ProductID: "p3"}, "/products/p3"},
		{"escaped id", Data{Type: TypeOrderUpdate, OrderID: "a/b"}, "/orders/a%2Fb"},
		{"known type without id uses url", Data{Type: TypeOrderUpdate, URL: "/orders"}, "/orders"},
		{"explicit url", Data{Type: "newsletter", URL: "/blog/fall"}, "/blog/fall"},
		{"nothing", Data{}, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.data); got != tt.want {
				t.Errorf("ResolveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
