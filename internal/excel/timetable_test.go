package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"coachbot/clients/coachapi"
)

func TestWriteTimetable(t *testing.T) {
	from := time.Date(2024, 6, 3, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 6)
	appts := []coachapi.Appointment{
		{ID: 2, StartTime: "2024-06-04T11:00:00", EndTime: "2024-06-04T12:00:00", Type: coachapi.TypeSplit, Status: coachapi.StatusConfirmed,
			Clients: []coachapi.PersonRef{{FirstName: "Ann", LastName: "Lee"}, {FirstName: "Bob"}}},
		{ID: 1, StartTime: "2024-06-03T09:00:00", EndTime: "2024-06-03T10:00:00", Type: coachapi.TypePersonal, Status: coachapi.StatusCancelled},
	}
	labels := Labels{
		Title: "Timetable", Date: "Date", Time: "Time", Type: "Type", Status: "Status",
		Clients: "Clients", Description: "Notes", Total: "Total",
		Types: map[coachapi.AppointmentType]string{coachapi.TypeSplit: "Split"},
	}

	data, err := WriteTimetable(from, to, appts, labels)
	if err != nil {
		t.Fatalf("WriteTimetable() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		sheet, cell, want string
	}{
		{SheetTimetable, "A1", "Timetable 03.06.2024 - 09.06.2024"},
		{SheetTimetable, "A4", "03.06.2024"},
		{SheetTimetable, "B4", "09:00-10:00"},
		{SheetTimetable, "C5", "Split"},
		{SheetTimetable, "E5", "Ann Lee, Bob"},
		{SheetSummary, "B12", "2"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue(tt.sheet, tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s) error = %v", tt.sheet, tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
	}
}

func TestExportTimetableBadTimestamp(t *testing.T) {
	_, err := ExportTimetable(time.Now(), time.Now(), []coachapi.Appointment{{ID: 1, StartTime: "завтра"}}, Labels{})
	if err == nil {
		t.Error("неверное время принято")
	}
}
