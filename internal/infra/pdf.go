package infra

// pdf.go renders the closing report of a shift with go-pdf/fpdf: header with
// shift and cashier ids, the cash movement table, break list, and the
// per-tender reconciliation block. Files land in storagePath/shift_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shiftpos/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateShiftReportPDF writes the closing report and returns its path.
// storagePath is created if needed.
func GenerateShiftReportPDF(report *dto.ShiftReportResponse, storagePath string) (string, error) {
	if report == nil {
		return "", fmt.Errorf("pdf: nil report")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("shift_%s.pdf", report.Shift.ID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30
	shift := report.Shift

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Shift closing report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Shift "+shift.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Cashier "+shift.CashierID+"   Store "+shift.StoreID, "", 1, "L", false, 0, "")
	period := shift.StartTime.Format(time.RFC3339) + "  to  "
	if shift.EndTime != nil {
		period += shift.EndTime.Format(time.RFC3339)
	} else {
		period += "open"
	}
	pdf.CellFormat(contentW, 5, period, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	label := contentW * 0.7
	value := contentW * 0.3
	row := func(name string, amount decimal.Decimal) {
		pdf.CellFormat(label, 6, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(value, 6, amount.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, "Cash drawer", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	row("Opening balance", shift.OpeningBalance)
	row("Cash sales", shift.PaymentSummary["CASH"])
	row("Pay-ins", report.TotalIn)
	row("Pay-outs", report.TotalOut)
	pdf.Ln(3)

	if len(shift.CashMovements) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW*0.25, 6, "Time", "B", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.1, 6, "Type", "B", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.45, 6, "Reason", "B", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.2, 6, "Amount", "B", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, m := range shift.CashMovements {
			reason := m.Reason
			if len(reason) > 48 {
				reason = reason[:47] + "..."
			}
			pdf.CellFormat(contentW*0.25, 5, m.Timestamp.Format("15:04:05"), "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW*0.1, 5, m.Type, "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW*0.45, 5, reason, "", 0, "L", false, 0, "")
			pdf.CellFormat(contentW*0.2, 5, m.Amount.StringFixed(2), "", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	if len(shift.Breaks) > 0 {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 7, "Breaks", "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, b := range shift.Breaks {
			end := "active"
			if b.EndTime != nil {
				end = b.EndTime.Format("15:04:05")
			}
			pdf.CellFormat(contentW, 5, fmt.Sprintf("%-6s %s - %s  %s", b.Type, b.StartTime.Format("15:04:05"), end, b.Note), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	if rec := report.Reconciliation; rec != nil {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 7, "Reconciliation", "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		row("Expected cash", rec.ExpectedCash)
		row("Counted cash", rec.ActualCash)
		pdf.SetFont("Helvetica", "B", 9)
		row("Cash variance", rec.Variance)
		pdf.SetFont("Helvetica", "", 9)
		row("Card variance", rec.CardVariance)
		row("Digital variance", rec.DigitalVariance)
	}

	if shift.ClosingNotes != nil && *shift.ClosingNotes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Notes: "+*shift.ClosingNotes, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
