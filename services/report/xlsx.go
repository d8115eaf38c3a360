package reportsvc

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/neighborguard/core/compliance"
)

const (
	SummarySheet  = "Summary"
	OfficersSheet = "Officers"

	timeLayout = "2006-01-02 15:04"
)

var (
	OfficersHeader = []string{
		"Officer ID", "Name", "Badge", "Assigned Houses", "Scanned Houses",
		"Total Scans", "Compliance Rate (%)", "Status", "Last Scan",
	}
	colWidths = []float64{38, 24, 12, 16, 16, 12, 20, 12, 18}
)

// AuditXLSX renders an audit report as an Excel workbook with a summary sheet and one row per officer.
func AuditXLSX(rep compliance.AuditReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, errors.Wrap(err, "renaming sheet")
	}
	idx, err := f.NewSheet(OfficersSheet)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	summary := [][]interface{}{
		{"From", rep.From.Format(timeLayout)},
		{"To", rep.To.Format(timeLayout)},
		{"Generated At", rep.GeneratedAt.Format(timeLayout)},
		{"Total Officers", len(rep.Rows)},
		{"Compliant Officers", rep.CompliantOfficers},
		{"Non-Compliant Officers", rep.NonCompliantOfficers},
		{"Suspended Officers", rep.SuspendedOfficers},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 24); err != nil {
		return nil, errors.Wrap(err, "setting column width")
	}

	header := make([]interface{}, len(OfficersHeader))
	for i, h := range OfficersHeader {
		header[i] = h
	}
	if err := setRow(f, OfficersSheet, 1, header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(OfficersHeader), 1)
	if err := f.SetCellStyle(OfficersSheet, "A1", last, headerStyle); err != nil {
		return nil, errors.Wrap(err, "setting header style")
	}
	for i, w := range colWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, errors.Wrap(err, "converting column number")
		}
		if err := f.SetColWidth(OfficersSheet, col, col, w); err != nil {
			return nil, errors.Wrap(err, "setting column width")
		}
	}

	for i, r := range rep.Rows {
		lastScan := ""
		if r.LastScanAt != nil {
			lastScan = r.LastScanAt.Format(timeLayout)
		}
		row := []interface{}{
			r.OfficerID, r.Name, r.BadgeNumber, r.AssignedHouses, r.ScannedHouses,
			r.TotalScans, r.ComplianceRate, string(r.Status), lastScan,
		}
		if err := setRow(f, OfficersSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(OfficersSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "freezing panes")
	}
	f.SetActiveSheet(idx)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "converting coordinates")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "writing %s row %d", sheet, row)
	}
	return nil
}
