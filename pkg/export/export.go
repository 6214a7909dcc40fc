// Package export renders orders and summaries for download or the console.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/example/preorder/pkg/models"
	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Orders"

var orderHeaders = []string{"id", "name", "order", "notes", "timestamp"}

// orderRow renders a CSV record. Free-text cells are neutralized so a
// spreadsheet opening the file does not evaluate them.
func orderRow(o models.Order) []string {
	return []string{strconv.Itoa(o.ID), safeCell(o.Name), safeCell(o.Order), safeCell(o.Notes), o.Timestamp}
}

// safeCell prefixes a quote to text a spreadsheet would otherwise evaluate
// as a formula.
func safeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// WriteCSV writes orders in store order with a header row.
func WriteCSV(w io.Writer, orders []models.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeaders); err != nil {
		return err
	}
	for _, o := range orders {
		if err := cw.Write(orderRow(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes orders as a single-sheet workbook.
func WriteXLSX(w io.Writer, orders []models.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(orderHeaders))
	for i, h := range orderHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "E1", style); err != nil {
		return err
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{o.ID, o.Name, o.Order, o.Notes, o.Timestamp}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(sheetName, "B", "C", 25)
	f.SetColWidth(sheetName, "D", "D", 40)
	f.SetColWidth(sheetName, "E", "E", 20)

	return f.Write(w)
}

// WriteSummaryTable prints one row per user summary.
func WriteSummaryTable(w io.Writer, summaries []models.UserSummary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Orders", "Most Common", "Last Ordered")
	for _, s := range summaries {
		if err := table.Append(s.DisplayName, strconv.Itoa(s.TotalOrders), s.MostCommon, s.LastOrdered); err != nil {
			return err
		}
	}
	return table.Render()
}
