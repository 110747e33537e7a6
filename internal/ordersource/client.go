package ordersource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smallbiznis/orderbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ordersource.client",
	fx.Provide(New),
)

var (
	ErrNotFound         = errors.New("order_source_not_found")
	ErrRequestFailed    = errors.New("order_source_request_failed")
	ErrInvalidSignature = errors.New("invalid_signature")
)

// Client is the consumed Order Source capability.
type Client interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetMenu(ctx context.Context) ([]MenuItem, error)
	VerifySignature(payload []byte, signature string) error
	VerificationEnabled() bool
}

type client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	verifyEnabled bool
	httpClient    *http.Client
	log           *zap.Logger
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

func New(p Params) Client {
	return &client{
		baseURL:       strings.TrimRight(p.Cfg.OrderSourceBaseURL, "/"),
		apiKey:        p.Cfg.OrderSourceAPIKey,
		webhookSecret: p.Cfg.WebhookSecret,
		verifyEnabled: p.Cfg.WebhookVerifyEnabled,
		httpClient:    &http.Client{Timeout: p.Cfg.OrderSourceTimeout},
		log:           p.Log.Named("ordersource.client"),
	}
}

func (c *client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.get(ctx, "/orders/"+orderID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *client) GetMenu(ctx context.Context) ([]MenuItem, error) {
	var payload struct {
		Items []MenuItem `json:"items"`
	}
	if err := c.get(ctx, "/menu", &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// VerifySignature checks the HMAC-SHA256 of the raw webhook body. A
// disabled verifier accepts everything.
func (c *client) VerifySignature(payload []byte, signature string) error {
	if !c.verifyEnabled {
		return nil
	}
	if c.webhookSecret == "" {
		c.log.Warn("webhook verification enabled but no secret configured")
		return ErrInvalidSignature
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

func (c *client) VerificationEnabled() bool {
	return c.verifyEnabled
}

func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, truncate(body, 256))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
