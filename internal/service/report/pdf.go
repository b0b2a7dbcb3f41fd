// Package report renders repair documents: the completion PDF handed to the
// customer and the spreadsheet export used by service managers.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/jwalitptl/repair-desk/internal/model"
)

const dateLayout = "02 Jan 2006"

// CompletionPDF renders the report attached to the completion email and served
// from GET /repairs/:id/report.
func CompletionPDF(d *model.RepairDetail, generatedAt time.Time) ([]byte, error) {
	if d == nil || d.RepairRequest == nil {
		return nil, fmt.Errorf("completion report: missing repair")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Repair Completion Report", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Repair Completion Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated "+generatedAt.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 8, label, "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(value), "B", 1, "L", false, 0, "")
	}

	r := d.RepairRequest
	row("Reference", r.ID)
	if d.Customer != nil {
		row("Customer", d.Customer.Name)
	}
	row("Equipment", orDash(r.EquipmentType))
	row("Damage", r.DamageType)
	row("Status", string(r.Status))
	row("Stage", r.CurrentStage)
	row("Progress", strconv.Itoa(r.RepairProgress)+"%")
	if r.CostEstimate != nil {
		row("Cost", formatCost(*r.CostEstimate))
	}
	if r.TimeEstimate != nil {
		row("Time estimate", r.TimeEstimate.String())
	}
	if d.Technician != nil {
		row("Technician", d.Technician.Name)
	}
	row("Submitted", r.CreatedAt.Format(dateLayout))
	if r.CompletedAt != nil {
		row("Completed", r.CompletedAt.Format(dateLayout))
	}

	if r.Description != "" {
		section(pdf, "Description")
		pdf.MultiCell(0, 6, tr(r.Description), "", "L", false)
	}
	if r.ProgressNotes != "" {
		section(pdf, "Technician notes")
		pdf.MultiCell(0, 6, tr(r.ProgressNotes), "", "L", false)
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Your equipment is ready for pickup. Please bring this report when collecting it.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("completion report: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Filename is the download name of a request's completion report.
func Filename(repairID string) string {
	return "repair-report-" + repairID + ".pdf"
}
