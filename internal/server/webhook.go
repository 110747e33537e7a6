package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"go.uber.org/zap"
)

// signatureHeader carries the HMAC of the raw body when verification is
// enabled on the order source side.
const signatureHeader = "X-Webhook-Signature"

// HandleWebhook ingests one webhook delivery. The envelope is either a
// single order object or an orders array; every order is driven through
// the reconciler and the outcomes are returned to the caller.
func (s *Server) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: unreadable body", ErrInvalidRequest))
		return
	}

	if s.source.VerificationEnabled() {
		if err := s.source.VerifySignature(body, c.GetHeader(signatureHeader)); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	var envelope ordersource.Webhook
	if err := json.Unmarshal(body, &envelope); err != nil {
		AbortWithError(c, fmt.Errorf("%w: malformed payload", ErrInvalidRequest))
		return
	}

	orders := envelope.AllOrders()
	if len(orders) == 0 {
		AbortWithError(c, fmt.Errorf("%w: webhook carried no orders", ErrInvalidRequest))
		return
	}
	for _, order := range orders {
		if order.ID.IsZero() {
			AbortWithError(c, fmt.Errorf("%w: order without id", ErrInvalidRequest))
			return
		}
		if order.Type != ordersource.OrderTypeTableReservation && len(order.Items) == 0 {
			AbortWithError(c, fmt.Errorf("%w: order %s has no items", ErrInvalidRequest, order.ID))
			return
		}
	}

	ctx := c.Request.Context()
	results := make([]*reconcilerdomain.Result, 0, len(orders))
	for _, order := range orders {
		raw, err := json.Marshal(order)
		if err != nil {
			raw = body
		}
		result, err := s.reconcilerSvc.Process(ctx, order, raw)
		if err != nil {
			s.log.Error("webhook processing failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			AbortWithError(c, err)
			return
		}
		results = append(results, result)
	}

	if len(results) == 1 {
		c.JSON(http.StatusOK, results[0])
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
