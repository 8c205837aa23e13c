package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"household-ledger/internal/family"
)

// getInsights serves the family's monthly spending breakdown.
func (s *Server) getInsights(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}
	res, err := s.purchases.Summarize(c.Request.Context(), m, c.Query("month"))
	if err != nil {
		s.fail(c, "getInsights", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
