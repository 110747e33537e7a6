package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	orders, err := s.ledgerSvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) ListFailedOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	orders, err := s.ledgerSvc.ListFailed(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) OrderStats(c *gin.Context) {
	stats, err := s.ledgerSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) GetOrder(c *gin.Context) {
	rec, err := s.ledgerSvc.Get(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RetryOrder re-drives a failed order on demand, ahead of the worker.
func (s *Server) RetryOrder(c *gin.Context) {
	result, err := s.reconcilerSvc.Retry(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
