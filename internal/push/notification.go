// Package push handles push messages and notification clicks: it renders
// notifications from push payloads and routes clicks to storefront pages.
package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrMalformed indicates a push payload that is not a notification.
	ErrMalformed = errors.New("push: malformed payload")
)

// Defaults applied to payloads that omit them.
const (
	DefaultTitle = "New notification"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
)

// Notification types with a known route.
const (
	TypeOrderUpdate      = "order_update"
	TypePromotion        = "promotion"
	TypeProductAvailable = "product_available"
	TypeBackInStock      = "back_in_stock"
	TypePriceDrop        = "price_drop"
)

// ActionDismiss closes the notification without opening a page.
const ActionDismiss = "dismiss"

// Action is a button shown on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Data is the application payload attached to a notification. Fields the
// worker routes on are decoded; any other keys are kept in Extra.
type Data struct {
	Type        string `json:"type,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	PromotionID string `json:"promotionId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	URL         string `json:"url,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var dataKeys = []string{"type", "orderId", "promotionId", "productId", "url"}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Data) UnmarshalJSON(b []byte) error {
	type known Data
	var k known
	if err := json.Unmarshal(b, &k); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, key := range dataKeys {
		delete(all, key)
	}
	k.Extra = nil
	if len(all) > 0 {
		k.Extra = all
	}
	*d = Data(k)
	return nil
}

// MarshalJSON implements json.Marshaler. Extra keys are written alongside
// the known fields; a known field wins over an Extra key of the same name.
func (d Data) MarshalJSON() ([]byte, error) {
	type known Data
	b, err := json.Marshal(known(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(d.Extra)+len(fields))
	for k, v := range d.Extra {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// Notification is a parsed push payload.
type Notification struct {
	Title              string   `json:"title"`
	Body               string   `json:"body,omitempty"`
	Icon               string   `json:"icon,omitempty"`
	Badge              string   `json:"badge,omitempty"`
	Image              string   `json:"image,omitempty"`
	Tag                string   `json:"tag,omitempty"`
	Data               Data     `json:"data"`
	Actions            []Action `json:"actions,omitempty"`
	RequireInteraction bool     `json:"requireInteraction,omitempty"`
	Silent             bool     `json:"silent,omitempty"`
	Renotify           bool     `json:"renotify,omitempty"`
	Vibrate            []int    `json:"vibrate,omitempty"`
}

// Parse decodes a push payload. An empty payload yields the default
// notification.
func Parse(data []byte) (*Notification, error) {
	n := &Notification{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Icon == "" {
		n.Icon = DefaultIcon
	}
	if n.Badge == "" {
		n.Badge = DefaultBadge
	}
	return n, nil
}

// ResolveURL returns the page a click on a notification carrying d opens.
func ResolveURL(d Data) string {
	switch d.Type {
	case TypeOrderUpdate:
		if d.OrderID != "" {
			return "/orders/" + url.PathEscape(d.OrderID)
		}
	case TypePromotion:
		if d.PromotionID != "" {
			return "/promotions/" + url.PathEscape(d.PromotionID)
		}
	case TypeProductAvailable, TypeBackInStock, TypePriceDrop:
		if d.ProductID != "" {
			return "/products/" + url.PathEscape(d.ProductID)
		}
	}
	if d.URL != "" {
		return d.URL
	}
	return "/"
}
