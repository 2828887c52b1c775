package attendance

import (
	"io"
	"time"

	"github.com/gocarina/gocsv"
)

// ExportRow is one attendance record flattened for spreadsheets.
type ExportRow struct {
	Date       string `csv:"Date"`
	EmployeeID string `csv:"Employee ID"`
	Name       string `csv:"Name"`
	MachineID  string `csv:"AC-No."`
	CheckIn    string `csv:"Check In"`
	CheckOut   string `csv:"Check Out"`
	WorkHours  string `csv:"Work Hours"`
	Overtime   string `csv:"Overtime"`
	Notes      string `csv:"Notes"`
}

// ExportRows flattens records, rendering punch times as HH:MM in loc.
func ExportRows(records []Record, loc *time.Location) []ExportRow {
	if loc == nil {
		loc = time.UTC
	}
	clock := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.In(loc).Format("15:04")
	}

	rows := make([]ExportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, ExportRow{
			Date:       r.Date.String(),
			EmployeeID: r.EmployeeID.String(),
			Name:       r.EmployeeName,
			MachineID:  r.MachineID,
			CheckIn:    clock(r.CheckIn),
			CheckOut:   clock(r.CheckOut),
			WorkHours:  r.WorkHours,
			Overtime:   r.Overtime,
			Notes:      r.Notes,
		})
	}
	return rows
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []Record, loc *time.Location) error {
	rows := ExportRows(records, loc)
	return gocsv.Marshal(&rows, w)
}
