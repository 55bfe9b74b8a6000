// Package report prints armed alarms and calendar months for the terminal
// subcommands.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/starford/plantbutler/internal/models"
)

const gridWidth = 7 * 3

// Alarms prints armed tasks ordered as given.
func Alarms(w io.Writer, armed []models.ArmedTask, loc *time.Location) {
	if len(armed) == 0 {
		_, _ = fmt.Fprintln(w, "No alarms armed.")
		return
	}
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold.Sprint("Plant"), bold.Sprint("Task"), bold.Sprint("Fires at"))
	for _, a := range armed {
		at := ""
		if a.Task.AlarmAt != nil {
			at = a.Task.AlarmAt.In(loc).Format("Mon Jan 2 15:04")
		}
		tbl.AddRow(a.PlantName, a.Task.Description, at)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Month prints a Sunday-first grid. Days with a diary note or photos are
// bold; the rest are faint. Memos follow the grid.
func Month(w io.Writer, view models.MonthView, memos []models.Memo) {
	title := color.New(color.FgWhite, color.Italic)
	faint := color.New(color.Faint, color.FgWhite)
	marked := color.New(color.Bold, color.FgHiGreen)

	name := time.Month(view.Month).String() + " " + fmt.Sprint(view.Year)
	mid := (gridWidth - len(name)) / 2
	if mid < 0 {
		mid = 0
	}
	_, _ = title.Fprintf(w, "%s%s\n", strings.Repeat(" ", mid), name)
	_, _ = fmt.Fprintln(w, "Su Mo Tu We Th Fr Sa")

	for i, c := range view.Cells {
		switch {
		case c.Blank:
			_, _ = fmt.Fprint(w, "   ")
		case c.HasDiary || c.PhotoCount > 0:
			_, _ = marked.Fprintf(w, "%2d ", c.Day)
		default:
			_, _ = faint.Fprintf(w, "%2d ", c.Day)
		}
		if (i+1)%7 == 0 {
			_, _ = fmt.Fprintln(w)
		}
	}

	if len(memos) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.Wrap = true
	tbl.MaxColWidth = 60
	for _, m := range memos {
		tbl.AddRow(m.Date, m.Text)
	}
	_, _ = fmt.Fprintln(w, tbl)
}
