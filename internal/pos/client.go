package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/orderbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("pos.client",
	fx.Provide(New),
)

var (
	// ErrRequestFailed covers transport errors and non-2xx responses.
	// Callers treating a lookup conservatively must not confuse it
	// with a clean not-found, which is reported as (nil, nil).
	ErrRequestFailed = errors.New("pos_request_failed")
)

// Client is the consumed POS capability.
type Client interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	FindItemBySKU(ctx context.Context, sku string) (*Item, error)
	CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*Receipt, error)
	GetReceiptByID(ctx context.Context, id string) (*Receipt, error)
	FindOrCreateCustomer(ctx context.Context, c Customer) (*Customer, error)
	CreateDiscount(ctx context.Context, d Discount) (*Discount, error)
	UpdateDiscount(ctx context.Context, d Discount) (*Discount, error)
	ListTenderTypes(ctx context.Context) ([]TenderType, error)
}

type client struct {
	baseURL     string
	accessToken string
	storeID     string
	httpClient  *http.Client
	log         *zap.Logger
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

func New(p Params) Client {
	log := p.Log.Named("pos.client")
	if p.Cfg.POSAccessToken == "" {
		log.Warn("pos access token not configured")
	}
	if p.Cfg.POSStoreID == "" {
		log.Warn("pos store id not configured")
	}
	return &client{
		baseURL:     strings.TrimRight(p.Cfg.POSBaseURL, "/"),
		accessToken: p.Cfg.POSAccessToken,
		storeID:     p.Cfg.POSStoreID,
		httpClient:  &http.Client{Timeout: p.Cfg.POSTimeout},
		log:         log,
	}
}

func (c *client) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	payload := map[string]any{
		"item_name":   req.Name,
		"description": req.Description,
		"track_stock": false,
		"form":        "SQUARE",
		"color":       "GREY",
		"variants": []map[string]any{
			{
				"sku":                  req.SKU,
				"default_pricing_type": "FIXED",
				"default_price":        req.Price,
			},
		},
	}

	var item Item
	if err := c.do(ctx, http.MethodPost, "/items", payload, &item); err != nil {
		return nil, err
	}
	if len(item.Variants) == 0 {
		return nil, fmt.Errorf("%w: created item %s has no variants", ErrRequestFailed, item.ID)
	}
	c.log.Info("pos item created",
		zap.String("item_id", item.ID),
		zap.String("sku", req.SKU),
	)
	return &item, nil
}

func (c *client) FindItemBySKU(ctx context.Context, sku string) (*Item, error) {
	var payload struct {
		Items []Item `json:"items"`
	}
	path := "/items?" + url.Values{"sku": {sku}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	for i := range payload.Items {
		for _, v := range payload.Items[i].Variants {
			if v.SKU == sku {
				return &payload.Items[i], nil
			}
		}
	}
	return nil, nil
}

func (c *client) CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*Receipt, error) {
	if req.StoreID == "" {
		req.StoreID = c.storeID
	}
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/receipts", req, &receipt); err != nil {
		return nil, err
	}
	if receipt.ID == "" {
		receipt.ID = receipt.ReceiptNumber
	}
	if receipt.ReceiptNumber == "" {
		receipt.ReceiptNumber = receipt.ID
	}
	return &receipt, nil
}

func (c *client) GetReceiptByID(ctx context.Context, id string) (*Receipt, error) {
	var receipt Receipt
	err := c.do(ctx, http.MethodGet, "/receipts/"+url.PathEscape(id), nil, &receipt)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// FindOrCreateCustomer searches for an exact phone or email match and
// creates the customer when none exists.
func (c *client) FindOrCreateCustomer(ctx context.Context, cust Customer) (*Customer, error) {
	if cust.Phone != "" || cust.Email != "" {
		var payload struct {
			Customers []Customer `json:"customers"`
		}
		if err := c.do(ctx, http.MethodGet, "/customers", nil, &payload); err != nil {
			return nil, err
		}
		for i := range payload.Customers {
			existing := payload.Customers[i]
			phoneMatch := cust.Phone != "" && existing.Phone == cust.Phone
			emailMatch := cust.Email != "" && existing.Email != "" &&
				strings.EqualFold(existing.Email, cust.Email)
			if phoneMatch || emailMatch {
				return &existing, nil
			}
		}
	}

	created := cust
	created.ID = ""
	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", created, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) CreateDiscount(ctx context.Context, d Discount) (*Discount, error) {
	d.ID = ""
	if len(d.Stores) == 0 && c.storeID != "" {
		d.Stores = []string{c.storeID}
	}
	var out Discount
	if err := c.do(ctx, http.MethodPost, "/discounts", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDiscount posts the discount with its id set; the POS upserts on id.
func (c *client) UpdateDiscount(ctx context.Context, d Discount) (*Discount, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: update requires discount id", ErrRequestFailed)
	}
	if len(d.Stores) == 0 && c.storeID != "" {
		d.Stores = []string{c.storeID}
	}
	var out Discount
	if err := c.do(ctx, http.MethodPost, "/discounts", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) ListTenderTypes(ctx context.Context) ([]TenderType, error) {
	var payload struct {
		PaymentTypes []TenderType `json:"payment_types"`
	}
	if err := c.do(ctx, http.MethodGet, "/payment_types", nil, &payload); err != nil {
		return nil, err
	}
	return payload.PaymentTypes, nil
}

var errNotFound = errors.New("pos_not_found")

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrRequestFailed, method, path, resp.StatusCode, truncate(respBody, 256))
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
