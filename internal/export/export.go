// Package export writes calendar months as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/models"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Source supplies the records of a month.
type Source interface {
	Month(ctx context.Context, year int, month time.Month) models.MonthView
	LoadDiaryText(ctx context.Context, day daykey.DayKey) string
	LoadPhotoRefs(ctx context.Context, day daykey.DayKey) []string
}

var headers = []string{"Date", "Diary", "Photos", "Photo count"}

// Filename returns the download name for a month.
func Filename(year int, month time.Month) string {
	return fmt.Sprintf("plantbutler-%04d-%02d.xlsx", year, int(month))
}

// MonthWorkbook writes one row per day that has a note or photos.
func MonthWorkbook(ctx context.Context, w io.Writer, src Source, year int, month time.Month) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := fmt.Sprintf("%04d-%02d", year, int(month))
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("export: header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "C", 50)

	row := 2
	for _, c := range src.Month(ctx, year, month).Cells {
		if c.Blank || (!c.HasDiary && c.PhotoCount == 0) {
			continue
		}
		refs := src.LoadPhotoRefs(ctx, c.Key)
		values := []any{c.Date, src.LoadDiaryText(ctx, c.Key), strings.Join(refs, "\n"), len(refs)}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("export: row %d: %w", row, err)
			}
		}
		from, _ := excelize.CoordinatesToCellName(1, row)
		to, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(sheet, from, to, wrap); err != nil {
			return fmt.Errorf("export: row style: %w", err)
		}
		row++
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
