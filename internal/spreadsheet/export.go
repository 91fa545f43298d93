package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/sievert/ingreso/internal/core"
)

// RosterSheet names the sheet of a roster export.
const RosterSheet = "Usuarios"

// WriteRoster writes the roster in template column order, so an export can
// be edited and imported again.
func WriteRoster(w io.Writer, users []core.UserRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RosterSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, RosterSheet, core.TemplateColumns); err != nil {
		return err
	}

	for i, u := range users {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rosterRow(u)
		if err := f.SetSheetRow(RosterSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

func rosterRow(u core.UserRecord) []any {
	var month string
	var year any
	if !u.StartDate.IsZero() {
		month = core.Months[u.StartDate.Month()-1]
		year = u.StartDate.Year()
	}
	return []any{
		u.FirstNames, u.LastNames, u.DocType, u.Document, u.Email, u.BirthDate,
		u.Gender, u.EducationLevel, u.JobTitle, u.Occupation, u.Area, u.OtherArea,
		u.Facility, u.Coverage, u.Technology, u.Periodicity, u.LocationsText(),
		month, year,
	}
}
