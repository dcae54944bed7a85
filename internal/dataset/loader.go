// Package dataset reads ride spreadsheets for upload and writes batch results back out.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/types"
)

// ErrUnsupported is returned for files that are neither CSV nor XLSX.
var ErrUnsupported = errors.New("unsupported file type")

// PrepareUpload reads path into an upload for the engine. CSV files are sent
// as they are; the first sheet of an XLSX workbook is converted to CSV.
func PrepareUpload(path string) (pricing.Upload, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return pricing.Upload{}, fmt.Errorf("read %s: %w", name, err)
		}
		return pricing.Upload{Name: name, Data: data}, nil
	case ".xlsx":
		rows, err := sheetRows(path)
		if err != nil {
			return pricing.Upload{}, err
		}
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(rows); err != nil {
			return pricing.Upload{}, fmt.Errorf("encode csv: %w", err)
		}
		return pricing.Upload{Name: strings.TrimSuffix(name, filepath.Ext(name)) + ".csv", Data: buf.Bytes()}, nil
	default:
		return pricing.Upload{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
}

func sheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer fh.Close()
		r := csv.NewReader(fh)
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		return rows, nil
	case ".xlsx":
		return sheetRows(path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
}

// LoadRecords parses ride records from a CSV or XLSX file. Header names are
// matched case-insensitively; every bad cell is reported, with its line.
func LoadRecords(path string) ([]types.RideRecord, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, name := range types.RideRecordFields {
		if _, ok := col[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	var (
		out  []types.RideRecord
		errs []error
	)
	for i, r := range rows[1:] {
		line := i + 2
		if blank(r) {
			continue
		}
		cell := func(name string) string {
			idx := col[strings.ToLower(name)]
			if idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}
		num := func(name string) float64 {
			v, err := strconv.ParseFloat(cell(name), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %s: %q is not a number", line, name, cell(name)))
			}
			return v
		}
		whole := func(name string) int {
			v, err := strconv.Atoi(cell(name))
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %s: %q is not an integer", line, name, cell(name)))
			}
			return v
		}
		out = append(out, types.RideRecord{
			HistoricalCostOfRide:  num("Historical_Cost_of_Ride"),
			ExpectedRideDuration:  num("Expected_Ride_Duration"),
			NumberOfRiders:        whole("Number_of_Riders"),
			NumberOfDrivers:       whole("Number_of_Drivers"),
			VehicleType:           types.VehicleType(cell("Vehicle_Type")),
			TimeOfBooking:         types.TimeOfBooking(cell("Time_of_Booking")),
			LocationCategory:      types.LocationCategory(cell("Location_Category")),
			CustomerLoyaltyStatus: types.LoyaltyStatus(cell("Customer_Loyalty_Status")),
			CompetitorPrice:       num("competitor_price"),
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
