package dataset

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"ride-pricing-console/internal/normalize"
	"ride-pricing-console/internal/types"
)

const (
	SheetResults = "Results"
	SheetKPIs    = "KPIs"
)

var resultHeader = []any{
	normalize.FieldIndex,
	"status",
	normalize.FieldPriceRecommended,
	normalize.FieldPCompleteRecommended,
	normalize.FieldPCompleteBaseline,
	normalize.FieldGMPct,
	normalize.FieldBoundLow,
	normalize.FieldBoundHigh,
	normalize.FieldError,
}

// ExportResults writes the rows to a Results sheet and the KPI snapshot to a
// KPIs sheet. Absent values are left blank; unreadable ones are written as NaN.
func ExportResults(path string, rows []normalize.BatchRow, kpis types.KPIMap) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetResults, "A1", &resultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(f, i+2, r); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetKPIs); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetKPIs, "A1", &[]any{"metric", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, name := range kpis.Names() {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetKPIs, cell, &[]any{name, cellValue(ptr(kpis[name]))}); err != nil {
			return fmt.Errorf("write kpi %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, line int, r normalize.BatchRow) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	values := []any{r.Index}
	if reason, failed := r.Failure(); failed {
		values = append(values, "error", nil, nil, nil, nil, nil, nil, reason)
	} else {
		m, _ := r.Metrics()
		values = append(values, "ok",
			cellValue(m.PriceRecommended),
			cellValue(m.PCompleteRecommended),
			cellValue(m.PCompleteBaseline),
			cellValue(m.GMPct),
			cellValue(m.BoundLow),
			cellValue(m.BoundHigh),
			nil,
		)
	}
	if err := f.SetSheetRow(SheetResults, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", r.Index, err)
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

func cellValue(v *float64) any {
	switch {
	case v == nil:
		return nil
	case math.IsNaN(*v):
		return "NaN"
	case math.IsInf(*v, 0):
		return fmt.Sprint(*v)
	default:
		return *v
	}
}
