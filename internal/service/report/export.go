package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/repair-desk/internal/model"
)

const exportSheet = "Repairs"

var exportHeaders = []string{
	"ID", "Customer", "Equipment", "Damage", "Status", "Stage", "Progress",
	"Cost", "Time Estimate", "Technician", "Submitted", "Completed",
}

var exportWidths = []float64{38, 22, 20, 24, 18, 26, 10, 10, 14, 22, 18, 18}

// ExportXLSX writes one row per request.
func ExportXLSX(rows []*model.RepairDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, exportWidths[i]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, d := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := exportRow(d)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(d *model.RepairDetail) []interface{} {
	r := d.RepairRequest
	values := []interface{}{
		r.ID, "", r.EquipmentType, r.DamageType, string(r.Status), r.CurrentStage,
		r.RepairProgress, "", "", "", r.CreatedAt.Format("2006-01-02 15:04"), "",
	}
	if d.Customer != nil {
		values[1] = d.Customer.Name
	}
	if r.CostEstimate != nil {
		values[7] = *r.CostEstimate
	}
	if r.TimeEstimate != nil {
		values[8] = r.TimeEstimate.String()
	}
	if d.Technician != nil {
		values[9] = d.Technician.Name
	}
	if r.CompletedAt != nil {
		values[11] = r.CompletedAt.Format("2006-01-02 15:04")
	}
	return values
}
