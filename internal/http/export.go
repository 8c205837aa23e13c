package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"household-ledger/internal/family"
	"household-ledger/internal/purchases"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ledgerRows loads export rows: always installment-dated, otherwise the same
// filters as the purchase listing.
func (s *Server) ledgerRows(c *gin.Context) ([]purchases.Row, string, bool) {
	m, ok := s.activeFamily(c, family.ErrNoFamilyAccess)
	if !ok {
		return nil, "", false
	}
	f := purchaseFilter(c)
	f.View = purchases.ViewInstallments
	rows, err := s.purchases.List(c.Request.Context(), m, f)
	if err != nil {
		s.fail(c, "ledgerRows", err)
		return nil, "", false
	}
	return rows, f.Month, true
}

func (s *Server) exportCSV(c *gin.Context) {
	rows, month, ok := s.ledgerRows(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := purchases.WriteCSV(&buf, rows); err != nil {
		s.fail(c, "exportCSV", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, purchases.ExportFilename(month, "csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) exportXLSX(c *gin.Context) {
	rows, month, ok := s.ledgerRows(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := purchases.WriteXLSX(&buf, rows); err != nil {
		s.fail(c, "exportXLSX", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, purchases.ExportFilename(month, "xlsx")))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
