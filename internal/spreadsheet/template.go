package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/sievert/ingreso/internal/core"
)

const (
	TemplateSheet = "Plantilla"
	ListsSheet    = "Listas"

	// NoFacilities fills the facility drop-down before any facility exists.
	NoFacilities = "Sin Sedes"

	// TemplateRows is how many data rows carry validations.
	TemplateRows = 1000

	columnWidth = 20
	facilityKey = "SEDES"
)

// columnLists maps a template column to the defined name of its drop-down.
var columnLists = map[string]string{
	core.ColDocType:        "TIPO_DOC",
	core.ColGender:         "GENERO",
	core.ColEducationLevel: "NIVEL_EDUCATIVO",
	core.ColJobTitle:       "TITULO",
	core.ColOccupation:     "OCUPACION",
	core.ColArea:           "AREA",
	core.ColFacility:       facilityKey,
	core.ColCoverage:       "COBERTURA",
	core.ColTechnology:     "TECNOLOGIA",
	core.ColPeriodicity:    "PERIODICIDAD",
	core.ColStartMonth:     "MESES",
}

// listOrder fixes the column of each list on the hidden sheet.
var listOrder = []string{
	"TIPO_DOC", "GENERO", "NIVEL_EDUCATIVO", "TITULO", "OCUPACION", "AREA",
	facilityKey, "COBERTURA", "TECNOLOGIA", "PERIODICIDAD", "MESES", "UBICACION_CORPO",
}

// WriteTemplate writes the roster import template for the given
// registered facility names.
func WriteTemplate(w io.Writer, facilities []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, TemplateSheet, core.TemplateColumns); err != nil {
		return err
	}
	if err := writeLists(f, facilities); err != nil {
		return err
	}
	if err := addValidations(f); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeLists fills the hidden sheet, one list per column, and registers a
// workbook-scoped defined name for each.
func writeLists(f *excelize.File, facilities []string) error {
	if _, err := f.NewSheet(ListsSheet); err != nil {
		return fmt.Errorf("create lists sheet: %w", err)
	}

	lists := core.MasterLists()
	if len(facilities) == 0 {
		lists[facilityKey] = []string{NoFacilities}
	} else {
		lists[facilityKey] = facilities
	}

	for i, name := range listOrder {
		values := lists[name]
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		for j, v := range values {
			if err := f.SetCellValue(ListsSheet, fmt.Sprintf("%s%d", col, j+1), v); err != nil {
				return fmt.Errorf("write list %s: %w", name, err)
			}
		}
		if err := f.SetDefinedName(&excelize.DefinedName{
			Name:     name,
			RefersTo: fmt.Sprintf("%s!$%s$1:$%s$%d", ListsSheet, col, col, len(values)),
		}); err != nil {
			return fmt.Errorf("define %s: %w", name, err)
		}
	}

	return f.SetSheetVisible(ListsSheet, false)
}

func addValidations(f *excelize.File) error {
	header := core.MakeHeaderIndex(core.TemplateColumns)

	for _, column := range core.TemplateColumns {
		name, ok := columnLists[column]
		if !ok {
			continue
		}
		sqref, err := columnRange(header, column)
		if err != nil {
			return err
		}
		dv := excelize.NewDataValidation(true)
		dv.Sqref = sqref
		dv.SetSqrefDropList(name)
		dv.SetError(excelize.DataValidationErrorStyleStop, column, "Seleccione un valor de la lista.")
		if err := f.AddDataValidation(TemplateSheet, dv); err != nil {
			return fmt.Errorf("validation %s: %w", column, err)
		}
	}

	sqref, err := columnRange(header, core.ColBirthDate)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	if err := dv.SetRange(
		fmt.Sprintf("DATE(%d,1,1)", MinBirthYear), "TODAY()",
		excelize.DataValidationTypeDate, excelize.DataValidationOperatorBetween,
	); err != nil {
		return fmt.Errorf("birth date range: %w", err)
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, core.ColBirthDate,
		fmt.Sprintf("Ingrese una fecha entre %d-01-01 y hoy.", MinBirthYear))
	if err := f.AddDataValidation(TemplateSheet, dv); err != nil {
		return fmt.Errorf("validation %s: %w", core.ColBirthDate, err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
	if err != nil {
		return err
	}
	col, _ := header.Index(core.ColBirthDate)
	name, _ := excelize.ColumnNumberToName(col + 1)
	return f.SetColStyle(TemplateSheet, name, dateStyle)
}

// MinBirthYear is the earliest birth year the template accepts.
const MinBirthYear = 1930

var dateFormat = "yyyy-mm-dd"

func columnRange(header core.HeaderIndex, column string) (string, error) {
	i, ok := header.Index(column)
	if !ok {
		return "", fmt.Errorf("template column %q not found", column)
	}
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s2:%s%d", name, name, TemplateRows+1), nil
}
