package purchases

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"household-ledger/internal/money"
)

// LedgerHeader is the fixed column order of ledger exports.
var LedgerHeader = []string{"purchaseId", "usuario", "estabelecimento", "tag", "mtp", "emissao", "vencimento", "parcela", "valor"}

const (
	isoLayout   = "2006-01-02T15:04:05.000Z07:00"
	ledgerSheet = "Ledger"
	utf8BOM     = "\ufeff"
)

func isoUTC(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func tagNames(tags []TagRef) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func establishment(r Row) string {
	if r.Establishment == nil {
		return ""
	}
	return *r.Establishment
}

func ledgerRecord(r Row) []string {
	return []string{
		r.ID,
		r.CreatedBy,
		establishment(r),
		tagNames(r.Tags),
		r.PaymentMethod,
		isoUTC(r.IssuedAt),
		isoUTC(r.DueDate),
		fmt.Sprintf("%d/%d", r.InstallmentIdx, r.InstallmentCount),
		money.FormatBR(r.TotalMonth),
	}
}

// WriteCSV renders rows as a semicolon separated ledger prefixed with a UTF-8
// byte order mark.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(LedgerHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(ledgerRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the same ledger as a workbook with numeric amounts.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return err
	}
	header := make([]any, len(LedgerHeader))
	for i, h := range LedgerHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		rec := ledgerRecord(r)
		cells := make([]any, len(rec))
		for j, v := range rec {
			cells[j] = v
		}
		cells[len(cells)-1] = r.TotalMonth.Round(2).InexactFloat64()
		if err := f.SetSheetRow(ledgerSheet, "A"+strconv.Itoa(i+2), &cells); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// ExportFilename names an export download after its month filter.
func ExportFilename(month, ext string) string {
	month = strings.TrimSpace(month)
	if month == "" || month == MonthAll {
		month = "todos"
	}
	return "export-" + month + "." + ext
}
