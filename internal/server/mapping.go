package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type lookupMappingRequest struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// LookupMapping is the diagnostic probe: it reports how a name would
// resolve without touching the POS or the catalog.
func (s *Server) LookupMapping(c *gin.Context) {
	var req lookupMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: malformed payload", ErrInvalidRequest))
		return
	}

	match, err := s.catalogSvc.Lookup(c.Request.Context(), req.Name, req.Size)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (s *Server) ListProducts(c *gin.Context) {
	entries, err := s.catalogSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": entries})
}

func (s *Server) ListPromotions(c *gin.Context) {
	promos, err := s.promoSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": promos})
}
