// Package report renders exports for administrative staff.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hackgods/hospital-admin/internal/bed"
)

const (
	ledgerSheet  = "Occupancy"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04"
)

var ledgerColumns = []string{"Floor", "Bed", "Type", "Patient", "Patient ID", "Entered", "Exited", "Hours in period", "Reason"}

var summaryColumns = []string{"Floor", "Bed", "Type", "Stays", "Occupied hours"}

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) header(columns []string) error {
	if err := w.write(toRow(columns)); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(len(columns), 1)
	return w.file.SetCellStyle(w.sheet, "A1", end, style)
}

func (w *sheetWriter) write(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func toRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

// hoursIn returns how long the stay overlapped [from, to), in hours rounded
// to one decimal. An open stay is counted up to to.
func hoursIn(e bed.LedgerEntry, from, to time.Time) float64 {
	start, end := e.EnteredAt, to
	if e.ExitedAt != nil && e.ExitedAt.Before(to) {
		end = *e.ExitedAt
	}
	if start.Before(from) {
		start = from
	}
	if !end.After(start) {
		return 0
	}
	return math.Round(end.Sub(start).Hours()*10) / 10
}

type bedTotals struct {
	floor  int
	number string
	typ    bed.Type
	stays  int
	hours  float64
}

// WriteOccupancy renders the ledger for [from, to) as an xlsx workbook with
// one row per stay and a per-bed summary. Times are shown in loc.
func WriteOccupancy(out io.Writer, entries []bed.LedgerEntry, from, to time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet(ledgerSheet); err != nil {
		return err
	}
	if err := w.header(ledgerColumns); err != nil {
		return err
	}

	totals := map[string]*bedTotals{}
	for _, e := range entries {
		exited := ""
		if e.ExitedAt != nil {
			exited = e.ExitedAt.In(loc).Format(timeLayout)
		}
		hours := hoursIn(e, from, to)
		row := []any{
			e.Floor, e.BedNumber, string(e.BedType), e.PatientName, e.PatientID.String(),
			e.EnteredAt.In(loc).Format(timeLayout), exited, hours, e.Reason,
		}
		if err := w.write(row); err != nil {
			return err
		}

		key := e.BedID.String()
		t, ok := totals[key]
		if !ok {
			t = &bedTotals{floor: e.Floor, number: e.BedNumber, typ: e.BedType}
			totals[key] = t
		}
		t.stays++
		t.hours += hours
	}

	if err := w.addSheet(summarySheet); err != nil {
		return err
	}
	if err := w.header(summaryColumns); err != nil {
		return err
	}
	beds := make([]*bedTotals, 0, len(totals))
	for _, t := range totals {
		beds = append(beds, t)
	}
	sort.Slice(beds, func(i, j int) bool {
		if beds[i].floor != beds[j].floor {
			return beds[i].floor < beds[j].floor
		}
		return beds[i].number < beds[j].number
	})
	for _, t := range beds {
		if err := w.write([]any{t.floor, t.number, string(t.typ), t.stays, t.hours}); err != nil {
			return err
		}
	}

	idx, err := w.file.GetSheetIndex(ledgerSheet)
	if err == nil {
		w.file.SetActiveSheet(idx)
	}
	return w.file.Write(out)
}
