package ordersource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/orderbridge/internal/config"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler, verify bool, secret string) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Params{
		Cfg: config.Config{
			OrderSourceBaseURL:   srv.URL,
			OrderSourceAPIKey:    "key-1",
			OrderSourceTimeout:   5 * time.Second,
			WebhookVerifyEnabled: verify,
			WebhookSecret:        secret,
		},
		Log: zap.NewNop(),
	})
}

func TestGetOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/8842615" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(Order{ID: "8842615", Type: OrderTypeDelivery, TotalPrice: 7})
	}), false, "")

	order, err := c.GetOrder(context.Background(), "8842615")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.ID.String() != "8842615" || order.TotalPrice != 7 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), false, "")

	_, err := c.GetOrder(context.Background(), "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "shhh"
	c := newTestClient(t, http.NotFoundHandler(), true, secret)

	payload := []byte(`{"id":"1"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	good := hex.EncodeToString(mac.Sum(nil))

	if err := c.VerifySignature(payload, good); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := c.VerifySignature(payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := c.VerifySignature(payload, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for empty header, got %v", err)
	}
}

func TestVerifySignatureDisabled(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), false, "")

	if c.VerificationEnabled() {
		t.Fatal("verification should be disabled")
	}
	if err := c.VerifySignature([]byte("anything"), "bogus"); err != nil {
		t.Fatalf("disabled verifier must accept, got %v", err)
	}
}
