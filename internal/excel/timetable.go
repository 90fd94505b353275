package excel

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"coachbot/clients/coachapi"
)

// Листы книги расписания
const (
	SheetTimetable = "Timetable"
	SheetSummary   = "Summary"
)

// Labels - подписи книги на языке пользователя
type Labels struct {
	Title       string
	Date        string
	Time        string
	Type        string
	Status      string
	Clients     string
	Description string
	Total       string
	Types       map[coachapi.AppointmentType]string
	Statuses    map[coachapi.AppointmentStatus]string
}

func (l Labels) typeName(t coachapi.AppointmentType) string {
	if name, ok := l.Types[t]; ok {
		return name
	}
	return string(t)
}

func (l Labels) statusName(s coachapi.AppointmentStatus) string {
	if name, ok := l.Statuses[s]; ok {
		return name
	}
	return string(s)
}

type row struct {
	start time.Time
	appt  coachapi.Appointment
}

// ExportTimetable строит книгу с расписанием тренера за период from..to
func ExportTimetable(from, to time.Time, appts []coachapi.Appointment, labels Labels) (*excelize.File, error) {
	rows := make([]row, 0, len(appts))
	for _, a := range appts {
		start, err := coachapi.ParseTimestamp(a.StartTime)
		if err != nil {
			return nil, fmt.Errorf("запись %d: %w", a.ID, err)
		}
		rows = append(rows, row{start: start, appt: a})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].start.Before(rows[j].start) })

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetTimetable)
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("ошибка создания листа: %w", err)
	}

	if err := createTimetableSheet(f, from, to, rows, labels); err != nil {
		return nil, fmt.Errorf("ошибка создания расписания: %w", err)
	}
	if err := createSummarySheet(f, rows, labels); err != nil {
		return nil, fmt.Errorf("ошибка создания сводки: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteTimetable возвращает книгу расписания в виде байтов .xlsx
func WriteTimetable(from, to time.Time, appts []coachapi.Appointment, labels Labels) ([]byte, error) {
	f, err := ExportTimetable(from, to, appts, labels)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка записи книги: %w", err)
	}
	return buf.Bytes(), nil
}

func createTimetableSheet(f *excelize.File, from, to time.Time, rows []row, labels Labels) error {
	sheet := SheetTimetable

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E2EFDA"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	cancelledStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Strike: true, Color: "808080"},
	})
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s %s - %s", labels.Title, from.Format("02.01.2006"), to.Format("02.01.2006"))
	f.SetCellValue(sheet, "A1", title)
	f.MergeCell(sheet, "A1", "F1")
	f.SetCellStyle(sheet, "A1", "F1", titleStyle)
	f.SetRowHeight(sheet, 1, 26)

	headers := []string{labels.Date, labels.Time, labels.Type, labels.Status, labels.Clients, labels.Description}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A3", "F3", headerStyle)

	for i, r := range rows {
		n := i + 4
		a := r.appt
		clients := ""
		for j, c := range a.Clients {
			if j > 0 {
				clients += ", "
			}
			clients += c.FullName()
		}

		f.SetCellValue(sheet, fmt.Sprintf("A%d", n), r.start.Format("02.01.2006"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", n), coachapi.Clock(a.StartTime)+"-"+coachapi.Clock(a.EndTime))
		f.SetCellValue(sheet, fmt.Sprintf("C%d", n), labels.typeName(a.Type))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", n), labels.statusName(a.Status))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", n), clients)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", n), a.Description)
		if a.Status == coachapi.StatusCancelled {
			f.SetCellStyle(sheet, fmt.Sprintf("A%d", n), fmt.Sprintf("F%d", n), cancelledStyle)
		}
	}

	f.SetColWidth(sheet, "A", "A", 12)
	f.SetColWidth(sheet, "B", "B", 13)
	f.SetColWidth(sheet, "C", "D", 14)
	f.SetColWidth(sheet, "E", "E", 36)
	f.SetColWidth(sheet, "F", "F", 40)
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 3, TopLeftCell: "A4", ActivePane: "bottomLeft"})
	return nil
}

func createSummarySheet(f *excelize.File, rows []row, labels Labels) error {
	sheet := SheetSummary

	byType := make(map[coachapi.AppointmentType]int)
	byStatus := make(map[coachapi.AppointmentStatus]int)
	for _, r := range rows {
		byType[r.appt.Type]++
		byStatus[r.appt.Status]++
	}

	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	n := 1
	write := func(label string, count int) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", n), label)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", n), count)
		n++
	}

	f.SetCellValue(sheet, "A1", labels.Type)
	f.SetCellStyle(sheet, "A1", "A1", labelStyle)
	n++
	for _, t := range []coachapi.AppointmentType{coachapi.TypePersonal, coachapi.TypeSplit, coachapi.TypeGroup, coachapi.TypeUnavailable} {
		write(labels.typeName(t), byType[t])
	}

	n++
	f.SetCellValue(sheet, fmt.Sprintf("A%d", n), labels.Status)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", n), fmt.Sprintf("A%d", n), labelStyle)
	n++
	for _, s := range []coachapi.AppointmentStatus{coachapi.StatusPending, coachapi.StatusConfirmed, coachapi.StatusCancelled} {
		write(labels.statusName(s), byStatus[s])
	}

	n++
	write(labels.Total, len(rows))
	f.SetColWidth(sheet, "A", "A", 24)
	return nil
}
