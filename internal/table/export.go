package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/phpdave11/gofpdf"

	"fintrack/internal/viewmodel"
)

var csvHeader = []string{"Description", "Category", "Amount", "Date", "Type"}

// pdfRowsPerPage keeps each page within the A4 body height at 8mm rows.
const pdfRowsPerPage = 25

// ExportCSV writes rows with the header Description,Category,Amount,Date,Type.
func ExportCSV(rows []viewmodel.Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Description,
			r.Category,
			strconv.FormatFloat(rowAmount(r), 'f', 2, 64),
			exportDate(r),
			rowType(r),
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportPDF renders a tabular report: title, generation date, totals and the
// rows, repeating the column header on every page. symbol labels the totals.
func ExportPDF(rows []viewmodel.Row, generated time.Time, symbol string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	var income, expense float64
	for _, r := range rows {
		v := rowAmount(r)
		if v >= 0 {
			income += v
		} else {
			expense -= v
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Transaction Report", false)
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Transaction Report")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Generated: "+generated.Format("02 Jan 2006 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(248, 248, 248)
	sumW := 60.0
	unit := pdfCurrencyLabel(symbol)
	pdf.CellFormat(sumW, 9, "Income"+unit, "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW, 9, "Expenses"+unit, "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW, 9, "Net"+unit, "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW, 9, fmt.Sprintf("%.2f", income), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW, 9, fmt.Sprintf("%.2f", expense), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW, 9, fmt.Sprintf("%.2f", income-expense), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	colW := []float64{62, 42, 28, 28, 22}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		for i, h := range csvHeader {
			align := "L"
			if i == 2 {
				align = "R"
			}
			pdf.CellFormat(colW[i], 8, h, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	header()
	for i, r := range rows {
		if i > 0 && i%pdfRowsPerPage == 0 {
			pdf.AddPage()
			header()
		}
		pdf.CellFormat(colW[0], 8, trimTo(asciiOnly(r.Description), 38), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 8, trimTo(asciiOnly(r.Category), 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 8, fmt.Sprintf("%.2f", rowAmount(r)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[3], 8, exportDate(r), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[4], 8, rowType(r), "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// rowAmount is the signed amount of a row: positive for income, negative for
// expenses. Rows without an amount fall back to their display string.
func rowAmount(r viewmodel.Row) float64 {
	if r.Amount.Cents == 0 {
		return DisplayAmountValue(r.DisplayAmount)
	}
	v := r.Amount.Float()
	if v < 0 {
		v = -v
	}
	if !r.IsIncome {
		v = -v
	}
	return v
}

var currencyNames = map[string]string{
	"₹": "Rs.",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"$": "$",
}

// pdfCurrencyLabel renders symbol as " (X)" using ASCII only, or "" when
// nothing printable remains.
func pdfCurrencyLabel(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	name, ok := currencyNames[symbol]
	if !ok {
		name = strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII || !unicode.IsPrint(r) {
				return -1
			}
			return r
		}, symbol)
	}
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}

// DisplayAmountValue extracts the signed number from a display string such
// as "-₹1,234.50". A minus before the first digit makes it negative.
// Anything unparsable yields 0.
func DisplayAmountValue(s string) float64 {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0
	}
	var b strings.Builder
	for _, r := range s[start:] {
		if unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	if strings.Contains(s[:start], "-") {
		v = -v
	}
	return v
}

func exportDate(r viewmodel.Row) string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("2006-01-02")
}

func rowType(r viewmodel.Row) string {
	if r.IsIncome {
		return "Income"
	}
	return "Expense"
}

// The core PDF fonts are Latin-1 only.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, s)
}

func trimTo(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
