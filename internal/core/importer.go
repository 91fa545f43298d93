package core

// importer.go implements the bulk roster import.
//
// The importer is resilient to partially malformed spreadsheets: a bad row
// is reported with its sheet row number and a reason, and processing moves
// on. Checks run in a fixed order and the first failure wins:
//
//  1. Area OTRO without Otra Area
//  2. Missing names or surnames
//  3. Missing document number
//  4. Duplicate document (strict policy only, warning severity)
//  5. Facility not registered
//  6. Blank body location (reject policy only)
//
// Accepted rows keep their locations on one record, or are expanded into
// one record per location, depending on the configured LocationMode.

import (
	"errors"
	"fmt"
	"strings"
)

// Template column headers, in template order.
const (
	ColFirstNames     = "Nombres"
	ColLastNames      = "Apellidos"
	ColDocType        = "Tipo Doc"
	ColDocument       = "Documento"
	ColEmail          = "Correo"
	ColBirthDate      = "F. Nacimiento (YYYY-MM-DD)"
	ColGender         = "Genero"
	ColEducationLevel = "Nivel Educativo"
	ColJobTitle       = "Titulo"
	ColOccupation     = "Ocupacion"
	ColArea           = "Area"
	ColOtherArea      = "Otra Area"
	ColFacility       = "Sede"
	ColCoverage       = "Cobertura"
	ColTechnology     = "Tecnologia"
	ColPeriodicity    = "Periodicidad"
	ColLocations      = "Ubicaciones"
	ColStartMonth     = "Mes Inicio"
	ColStartYear      = "Año Inicio"
)

// TemplateColumns lists the template headers in order.
var TemplateColumns = []string{
	ColFirstNames, ColLastNames, ColDocType, ColDocument, ColEmail, ColBirthDate,
	ColGender, ColEducationLevel, ColJobTitle, ColOccupation, ColArea, ColOtherArea,
	ColFacility, ColCoverage, ColTechnology, ColPeriodicity, ColLocations,
	ColStartMonth, ColStartYear,
}

// requiredColumns must be present in an uploaded header row.
var requiredColumns = []string{
	ColFirstNames, ColLastNames, ColDocument, ColFacility, ColLocations,
}

// Rejection reasons.
const (
	ReasonMissingOtherArea = "Falta 'Otra Area'"
	ReasonMissingName      = "Falta Nombre/Apellido"
	ReasonMissingDocument  = "Falta Documento"
	ReasonDuplicatePrefix  = "Duplicado"
	ReasonUnknownFacility  = "Sede incorrecta"
	ReasonMissingLocation  = "Falta Ubicación"
)

// ErrNoFacilities is returned when an import is attempted before any
// facility has been registered.
var ErrNoFacilities = errors.New("no facilities registered")

// HeaderError reports required columns absent from an uploaded file.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required column: %s", strings.Join(e.Missing, ", "))
}

// ValidateHeader checks that every required template column is present.
func ValidateHeader(header HeaderIndex) error {
	var missing []string
	for _, col := range requiredColumns {
		if !header.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &HeaderError{Missing: missing}
	}
	return nil
}

// RosterKey returns the uniqueness key of a record under the given mode.
// Records without a document have no key.
func RosterKey(u UserRecord, mode LocationMode) string {
	if u.Document == "" {
		return ""
	}
	if mode == LocationsExploded {
		return u.Document + "|" + u.LocationsText()
	}
	return u.Document
}

// ImportRoster validates and normalizes spreadsheet rows.
//
// rows excludes the header row; rows[0] is reported as sheet row 2.
// knownFacilities are the registered facility names; matching is
// case and accent insensitive and accepted records carry the registered
// spelling. existingDocuments is not modified.
func ImportRoster(rows [][]string, header HeaderIndex, knownFacilities []string, existingDocuments map[string]struct{}, policy Policy) ImportResult {
	facilities := make(map[string]string, len(knownFacilities))
	for _, name := range knownFacilities {
		if key := Normalize(name); key != "" {
			if _, dup := facilities[key]; !dup {
				facilities[key] = name
			}
		}
	}

	seen := make(map[string]struct{}, len(existingDocuments)+len(rows))
	for doc := range existingDocuments {
		seen[doc] = struct{}{}
	}

	// keys holds the roster keys accepted from this batch, so the result is
	// always appendable to a strict roster.
	keys := make(map[string]struct{}, len(rows))

	result := ImportResult{Accepted: []UserRecord{}, Rejections: []Rejection{}}

	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		result.TotalRows++
		lineNum := i + 2

		reject := func(reason string, sev Severity) {
			result.Rejections = append(result.Rejections, Rejection{
				Row:      lineNum,
				Reason:   reason,
				Severity: sev,
				Data:     row,
			})
		}

		firstNames := Normalize(header.Cell(row, ColFirstNames))
		lastNames := Normalize(header.Cell(row, ColLastNames))
		area := Normalize(header.Cell(row, ColArea))
		otherArea := Normalize(header.Cell(row, ColOtherArea))
		facilityKey := Normalize(header.Cell(row, ColFacility))
		doc := DocumentNumber(header.Cell(row, ColDocument))

		if area == OtherSentinel && otherArea == "" {
			reject(ReasonMissingOtherArea, SeverityError)
			continue
		}
		if firstNames == "" || lastNames == "" {
			reject(ReasonMissingName, SeverityError)
			continue
		}
		if doc == "" {
			reject(ReasonMissingDocument, SeverityError)
			continue
		}
		if policy.Duplicates == DuplicatesStrict {
			if _, dup := seen[doc]; dup {
				reject(ReasonDuplicatePrefix+" "+doc, SeverityWarning)
				continue
			}
		}
		facility, ok := facilities[facilityKey]
		if !ok {
			reject(ReasonUnknownFacility, SeverityError)
			continue
		}

		year, _ := ParseYear(header.Cell(row, ColStartYear))
		start := FirstDayOfMonth(header.Cell(row, ColStartMonth), year)

		locations := SplitLocations(header.Cell(row, ColLocations))
		if len(locations) == 0 && policy.BlankLocation == BlankLocationReject {
			reject(ReasonMissingLocation, SeverityError)
			continue
		}

		rec := UserRecord{
			FirstNames:     firstNames,
			LastNames:      lastNames,
			DocType:        upperCell(header.Cell(row, ColDocType)),
			Document:       doc,
			Email:          lowerCell(header.Cell(row, ColEmail)),
			BirthDate:      BirthDateText(header.Cell(row, ColBirthDate)),
			Gender:         upperCell(header.Cell(row, ColGender)),
			EducationLevel: upperCell(header.Cell(row, ColEducationLevel)),
			JobTitle:       upperCell(header.Cell(row, ColJobTitle)),
			Occupation:     upperCell(header.Cell(row, ColOccupation)),
			Area:           area,
			OtherArea:      otherArea,
			Facility:       facility,
			Coverage:       upperCell(header.Cell(row, ColCoverage)),
			Technology:     upperCell(header.Cell(row, ColTechnology)),
			Periodicity:    upperCell(header.Cell(row, ColPeriodicity)),
			Locations:      locations,
			StartDate:      start,
		}

		expanded := ExpandLocations(rec, policy.Locations)
		if policy.Duplicates == DuplicatesStrict {
			if !claimKeys(keys, expanded, policy.Locations) {
				reject(ReasonDuplicatePrefix+" "+doc, SeverityWarning)
				continue
			}
			seen[doc] = struct{}{}
		}
		result.Accepted = append(result.Accepted, expanded...)
	}

	return result
}

// claimKeys adds the keys of recs to keys unless one is already taken,
// in which case keys is left unchanged.
func claimKeys(keys map[string]struct{}, recs []UserRecord, mode LocationMode) bool {
	own := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		k := RosterKey(rec, mode)
		if k == "" {
			continue
		}
		if _, dup := keys[k]; dup {
			return false
		}
		if _, dup := own[k]; dup {
			return false
		}
		own[k] = struct{}{}
	}
	for k := range own {
		keys[k] = struct{}{}
	}
	return true
}

// ExpandLocations returns rec unchanged under LocationsJoined, or one copy
// per location under LocationsExploded. A record with no locations is
// returned as is.
func ExpandLocations(rec UserRecord, mode LocationMode) []UserRecord {
	if mode != LocationsExploded || len(rec.Locations) <= 1 {
		return []UserRecord{rec}
	}
	out := make([]UserRecord, 0, len(rec.Locations))
	for _, loc := range rec.Locations {
		cp := rec
		cp.Locations = []string{loc}
		out = append(out, cp)
	}
	return out
}

// isEmptyRow checks if a row contains only empty or whitespace values.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if !IsMissing(CleanCell(cell)) {
			return false
		}
	}
	return true
}
