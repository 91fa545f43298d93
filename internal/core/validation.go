package core

// validation.go holds the record predicates and the pre-submission checks.
//
// The predicates are pure and cheap; they are reused by manual entry, the
// bulk importer and the final check that runs before anything is stored.
// Pre-submission checks return the first problem found as a
// *ValidationIssue carrying the 1-based roster row and field, so the
// operator can fix it in place.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// emailRegex accepts local@domain.tld with word characters, dots and hyphens.
var emailRegex = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// now is replaced in tests.
var now = time.Now

// IsValidEmail reports whether s has the shape local@domain.tld.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return emailRegex.MatchString(s)
}

// RequiredFieldsPresent reports whether every named field exists in fields
// and is non-empty after trimming.
func RequiredFieldsPresent(fields map[string]string, names []string) bool {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// OtherAreaRule reports whether the area/other-area pair is consistent:
// an area of OTRO needs a non-empty free-text area.
func OtherAreaRule(area, otherArea string) bool {
	if Normalize(area) != OtherSentinel {
		return true
	}
	return strings.TrimSpace(otherArea) != ""
}

// MonthIndex returns the 1-based month for a Spanish month name, or 0.
func MonthIndex(name string) int {
	n := Normalize(name)
	for i, m := range Months {
		if m == n {
			return i + 1
		}
	}
	return 0
}

// FirstDayOfMonth resolves a Spanish month name and a year to the first day
// of that month. An unknown month or a year outside 1..9999 falls back to
// the first day of the current month; this leniency is intentional.
func FirstDayOfMonth(monthName string, year int) time.Time {
	m := MonthIndex(monthName)
	if m == 0 || year < 1 || year > 9999 {
		t := now()
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

// ValidationIssue is the first problem that blocks a submission.
// Row is 1-based within the roster; 0 means the issue is not row specific.
type ValidationIssue struct {
	Section string
	Row     int
	Field   string
	Message string
}

func (v *ValidationIssue) Error() string {
	if v.Row > 0 {
		return fmt.Sprintf("Fila %d: %s", v.Row, v.Message)
	}
	return v.Message
}

// Roster field labels used in issues.
const (
	FieldFirstNames = "Nombres"
	FieldLastNames  = "Apellidos"
	FieldDocument   = "Documento"
	FieldEmail      = "Correo"
	FieldFacility   = "Sede"
	FieldLocations  = "Ubicaciones"
	FieldOtherArea  = "Otra Area"
)

// MsgEmptyRoster is returned when a submission has no users.
const MsgEmptyRoster = "La tabla de usuarios está vacía."

// ValidateRoster checks every record for required fields, e-mail shape and
// the other-area rule. It returns nil when the roster can be submitted.
func ValidateRoster(records []UserRecord) *ValidationIssue {
	if len(records) == 0 {
		return &ValidationIssue{Section: "usuarios", Message: MsgEmptyRoster}
	}

	for i, u := range records {
		row := i + 1
		required := []struct {
			field string
			value string
		}{
			{FieldFirstNames, u.FirstNames},
			{FieldLastNames, u.LastNames},
			{FieldDocument, u.Document},
			{FieldEmail, u.Email},
			{FieldFacility, u.Facility},
			{FieldLocations, u.LocationsText()},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				return &ValidationIssue{
					Section: "usuarios",
					Row:     row,
					Field:   r.field,
					Message: fmt.Sprintf("El campo '%s' está vacío.", r.field),
				}
			}
		}
		if !IsValidEmail(u.Email) {
			return &ValidationIssue{Section: "usuarios", Row: row, Field: FieldEmail, Message: "El correo no es válido."}
		}
		if !OtherAreaRule(u.Area, u.OtherArea) {
			return &ValidationIssue{
				Section: "usuarios",
				Row:     row,
				Field:   FieldOtherArea,
				Message: "Seleccionó 'OTRO' en Área, debe especificar 'Otra Area'.",
			}
		}
	}
	return nil
}

// ValidateClient checks the configured required client fields and, when an
// e-mail is given, its shape.
func ValidateClient(c ClientRecord, required []string) *ValidationIssue {
	fields := c.Fields()
	for _, name := range required {
		if strings.TrimSpace(fields[name]) == "" {
			return &ValidationIssue{
				Section: "cliente",
				Field:   name,
				Message: fmt.Sprintf("Falta el dato del cliente '%s'.", name),
			}
		}
	}
	if strings.TrimSpace(c.Email) != "" && !IsValidEmail(c.Email) {
		return &ValidationIssue{Section: "cliente", Field: "email", Message: "El correo del cliente no es válido."}
	}
	return nil
}
