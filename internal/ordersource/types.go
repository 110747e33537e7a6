package ordersource

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Line item types on the wire.
const (
	ItemTypeItem        = "item"
	ItemTypePromoItem   = "promo_item"
	ItemTypePromoCart   = "promo_cart"
	ItemTypeDeliveryFee = "delivery_fee"
)

// Order types.
const (
	OrderTypeDelivery         = "delivery"
	OrderTypePickup           = "pickup"
	OrderTypeTableReservation = "table_reservation"
)

// StatusAccepted is the only order status the bridge turns into a receipt.
const StatusAccepted = "accepted"

// ID accepts both string and numeric JSON identifiers; the Order Source
// has shipped both over time.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// ItemOption is a modifier attached to a line item (size, extras).
type ItemOption struct {
	Name      string  `json:"name"`
	GroupName string  `json:"group_name"`
	Type      string  `json:"type"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Item is one order line as delivered by the Order Source.
type Item struct {
	ID               ID           `json:"id"`
	ParentID         ID           `json:"parent_id"`
	Type             string       `json:"type"`
	TypeID           ID           `json:"type_id"`
	Name             string       `json:"name"`
	Price            float64      `json:"price"`
	Quantity         int          `json:"quantity"`
	Instructions     string       `json:"instructions"`
	CartDiscount     float64      `json:"cart_discount"`
	CartDiscountRate float64      `json:"cart_discount_rate"`
	ItemDiscount     float64      `json:"item_discount"`
	TotalItemPrice   float64      `json:"total_item_price"`
	Options          []ItemOption `json:"options"`
}

// Order is the inbound webhook order payload.
type Order struct {
	ID              ID      `json:"id"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	ClientFirstName string  `json:"client_first_name"`
	ClientLastName  string  `json:"client_last_name"`
	ClientPhone     string  `json:"client_phone"`
	ClientEmail     string  `json:"client_email"`
	ClientAddress   string  `json:"client_address"`
	Payment         string  `json:"payment"`
	Instructions    string  `json:"instructions"`
	TotalPrice      float64 `json:"total_price"`
	SubTotalPrice   float64 `json:"sub_total_price"`
	TaxValue        float64 `json:"tax_value"`
	DeliveryFee     float64 `json:"delivery_fee"`
	AcceptedAt      string  `json:"accepted_at"`
	UpdatedAt       string  `json:"updated_at"`
	Items           []Item  `json:"items"`
}

// CustomerName joins first and last name, falling back to a placeholder.
func (o Order) CustomerName() string {
	name := strings.TrimSpace(strings.TrimSpace(o.ClientFirstName) + " " + strings.TrimSpace(o.ClientLastName))
	if name == "" {
		return "Unknown Customer"
	}
	return name
}

// IsReservation reports whether the payload is a table reservation or
// otherwise carries no purchasable lines.
func (o Order) IsReservation() bool {
	return o.Type == OrderTypeTableReservation || len(o.Items) == 0
}

// IsAccepted reports whether the order has been accepted by the Order
// Source. Payloads without a status field are treated as accepted; some
// webhook configurations omit it entirely.
func (o Order) IsAccepted() bool {
	status := strings.ToLower(strings.TrimSpace(o.Status))
	return status == "" || status == StatusAccepted
}

// Webhook is the envelope: either a single order object or {orders: [...]}.
type Webhook struct {
	Orders []Order `json:"orders"`
	Order
}

// AllOrders flattens the envelope into the orders it carries.
func (w Webhook) AllOrders() []Order {
	if len(w.Orders) > 0 {
		return w.Orders
	}
	if !w.Order.ID.IsZero() {
		return []Order{w.Order}
	}
	return nil
}

// MenuItem is one sellable entry from the Order Source menu API.
type MenuItem struct {
	ID    ID      `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Group string  `json:"group"`
}
