package event

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Events"

var exportHeaders = []interface{}{
	"Event ID", "Event", "Description", "Department ID", "Assignee",
	"Schedule", "Equipment", "Parameters", "Created At",
}

// WriteXLSX renders event summaries as a single-sheet workbook.
func WriteXLSX(w io.Writer, events []*Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "I1", style); err != nil {
		return err
	}

	for i, ev := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			ev.ID.String(), ev.Name, ev.Description, ev.DepartmentID.String(), ev.AssigneeName,
			ev.ScheduleType, ev.EquipmentCount, ev.ParameterCount, ev.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(exportSheet, "A", "A", 38)
	f.SetColWidth(exportSheet, "B", "C", 30)
	f.SetColWidth(exportSheet, "D", "D", 38)
	f.SetColWidth(exportSheet, "E", "F", 20)
	f.SetColWidth(exportSheet, "I", "I", 18)

	return f.Write(w)
}
