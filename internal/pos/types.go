package pos

// Variant is a sellable variant of a POS item. The variant id is what
// receipts reference.
type Variant struct {
	VariantID    string  `json:"variant_id"`
	SKU          string  `json:"sku"`
	DefaultPrice float64 `json:"default_price"`
}

// Item is a POS catalog item.
type Item struct {
	ID       string    `json:"id"`
	ItemName string    `json:"item_name"`
	Variants []Variant `json:"variants"`
}

// CreateItemRequest carries the fields the bridge sets on new items.
type CreateItemRequest struct {
	Name        string
	Description string
	Price       float64
	SKU         string
}

// Customer mirrors the POS customer record.
type Customer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// TenderType is a configured payment method.
type TenderType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ReceiptLine is one line on a receipt, referencing a variant by id.
type ReceiptLine struct {
	VariantID  string  `json:"variant_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"price"`
	TotalPrice float64 `json:"total_money,omitempty"`
	LineNote   string  `json:"line_note,omitempty"`
}

// ReceiptPayment tags the tender used.
type ReceiptPayment struct {
	PaymentTypeID string  `json:"payment_type_id"`
	Money         float64 `json:"money_amount"`
}

// ReceiptDiscount applies a configured POS discount to the receipt.
type ReceiptDiscount struct {
	DiscountID string `json:"discount_id"`
}

// CreateReceiptRequest is the receipt the bridge creates per order.
type CreateReceiptRequest struct {
	StoreID        string            `json:"store_id"`
	Order          string            `json:"order"`
	Source         string            `json:"source"`
	ReceiptDate    string            `json:"receipt_date,omitempty"`
	LineItems      []ReceiptLine     `json:"line_items"`
	Payments       []ReceiptPayment  `json:"payments"`
	TotalDiscounts []ReceiptDiscount `json:"total_discounts,omitempty"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Note           string            `json:"note,omitempty"`
}

// Receipt is the POS response to receipt creation or lookup.
type Receipt struct {
	ID            string `json:"id"`
	ReceiptNumber string `json:"receipt_number"`
}

// Discount mirrors the POS discount record. Exactly one of
// DiscountPercent / DiscountAmount is meaningful per Type.
type Discount struct {
	ID              string   `json:"id,omitempty"`
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	DiscountPercent float64  `json:"discount_percent,omitempty"`
	DiscountAmount  float64  `json:"discount_amount,omitempty"`
	Stores          []string `json:"stores,omitempty"`
}

// POS discount types.
const (
	DiscountFixedPercent = "FIXED_PERCENT"
	DiscountFixedAmount  = "FIXED_AMOUNT"
)

// TenderCash is the POS tender type the bridge defaults to.
const TenderCash = "CASH"
