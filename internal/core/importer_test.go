package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testHeader = MakeHeaderIndex(TemplateColumns)

// row builds a template row from column/value pairs.
func row(kv ...string) []string {
	r := make([]string, len(TemplateColumns))
	for i := 0; i+1 < len(kv); i += 2 {
		r[testHeader[headerKey(kv[i])]] = kv[i+1]
	}
	return r
}

func goodRow(doc string) []string {
	return row(
		ColFirstNames, "Ana María",
		ColLastNames, "Pérez",
		ColDocType, "cc",
		ColDocument, doc,
		ColEmail, "Ana@Clinica.CO",
		ColBirthDate, "1990-05-17 00:00:00",
		ColArea, "Radiología",
		ColFacility, "sede norte",
		ColCoverage, "arl",
		ColTechnology, "tld",
		ColPeriodicity, "mensual",
		ColLocations, "ANILLO",
		ColStartMonth, "febrero",
		ColStartYear, "2025.0",
	)
}

var testFacilities = []string{"SEDE NORTE", "SEDE SUR"}

func strict() Policy { return DefaultPolicy() }

func relaxed() Policy {
	p := DefaultPolicy()
	p.Duplicates = DuplicatesRelaxed
	return p
}

// =============================================================================
// Happy path and normalization
// =============================================================================

func TestImportRoster_AcceptsAndNormalizes(t *testing.T) {
	res := ImportRoster([][]string{goodRow("123456.0")}, testHeader, testFacilities, nil, strict())

	if len(res.Rejections) != 0 {
		t.Fatalf("rejections = %v, want none", res.Rejections)
	}
	if len(res.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(res.Accepted))
	}

	got := res.Accepted[0]
	want := UserRecord{
		FirstNames:  "ANA MARIA",
		LastNames:   "PEREZ",
		DocType:     "CC",
		Document:    "123456",
		Email:       "ana@clinica.co",
		BirthDate:   "1990-05-17",
		Area:        "RADIOLOGIA",
		Facility:    "SEDE NORTE",
		Coverage:    "ARL",
		Technology:  "TLD",
		Periodicity: "MENSUAL",
		Locations:   []string{"ANILLO"},
		StartDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("accepted record =\n%+v\nwant\n%+v", got, want)
	}
	if res.TotalRows != 1 {
		t.Errorf("TotalRows = %d, want 1", res.TotalRows)
	}
}

func TestImportRoster_FacilityMatchIsAccentAndCaseInsensitive(t *testing.T) {
	r := goodRow("1")
	r[testHeader[headerKey(ColFacility)]] = "  Sede Medellín "

	res := ImportRoster([][]string{r}, testHeader, []string{"SEDE MEDELLIN"}, nil, strict())
	if len(res.Accepted) != 1 {
		t.Fatalf("accepted = %d, rejections = %v", len(res.Accepted), res.Rejections)
	}
	if res.Accepted[0].Facility != "SEDE MEDELLIN" {
		t.Errorf("Facility = %q, want registered spelling", res.Accepted[0].Facility)
	}
}

// =============================================================================
// Rejections
// =============================================================================

func TestImportRoster_OtherAreaRejectsOnlyThatRow(t *testing.T) {
	bad := goodRow("2")
	bad[testHeader[headerKey(ColArea)]] = "OTRO"

	rows := [][]string{goodRow("1"), bad, goodRow("3")}
	res := ImportRoster(rows, testHeader, testFacilities, nil, strict())

	if len(res.Rejections) != 1 {
		t.Fatalf("rejections = %v, want exactly one", res.Rejections)
	}
	rej := res.Rejections[0]
	if rej.Row != 3 {
		t.Errorf("rejected row = %d, want 3", rej.Row)
	}
	if !strings.Contains(rej.Reason, "Otra Area") {
		t.Errorf("reason = %q, want mention of Otra Area", rej.Reason)
	}
	if rej.Severity != SeverityError {
		t.Errorf("severity = %q, want error", rej.Severity)
	}
	if len(res.Accepted) != 2 || res.Accepted[0].Document != "1" || res.Accepted[1].Document != "3" {
		t.Errorf("accepted = %+v, want documents 1 and 3", res.Accepted)
	}
}

func TestImportRoster_CheckOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r []string)
		reason string
	}{
		{
			name: "other area checked before names",
			mutate: func(r []string) {
				r[testHeader[headerKey(ColArea)]] = "otro"
				r[testHeader[headerKey(ColFirstNames)]] = ""
			},
			reason: ReasonMissingOtherArea,
		},
		{
			name: "names checked before document",
			mutate: func(r []string) {
				r[testHeader[headerKey(ColLastNames)]] = "nan"
				r[testHeader[headerKey(ColDocument)]] = ""
			},
			reason: ReasonMissingName,
		},
		{
			name: "nan document",
			mutate: func(r []string) {
				r[testHeader[headerKey(ColDocument)]] = "nan"
			},
			reason: ReasonMissingDocument,
		},
		{
			name: "document checked before facility",
			mutate: func(r []string) {
				r[testHeader[headerKey(ColDocument)]] = ""
				r[testHeader[headerKey(ColFacility)]] = "NOWHERE"
			},
			reason: ReasonMissingDocument,
		},
		{
			name: "unknown facility",
			mutate: func(r []string) {
				r[testHeader[headerKey(ColFacility)]] = "SEDE ESTE"
			},
			reason: ReasonUnknownFacility,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodRow("77")
			tt.mutate(r)
			res := ImportRoster([][]string{r}, testHeader, testFacilities, nil, strict())
			if len(res.Rejections) != 1 {
				t.Fatalf("rejections = %v, want one", res.Rejections)
			}
			if res.Rejections[0].Reason != tt.reason {
				t.Errorf("reason = %q, want %q", res.Rejections[0].Reason, tt.reason)
			}
			if res.Rejections[0].Row != 2 {
				t.Errorf("row = %d, want 2", res.Rejections[0].Row)
			}
		})
	}
}

func TestImportRoster_BlankRowsSkipped(t *testing.T) {
	blank := make([]string, len(TemplateColumns))
	nanRow := row(ColFirstNames, "nan", ColDocument, "NaN")
	rows := [][]string{goodRow("1"), blank, nanRow, goodRow("2")}

	res := ImportRoster(rows, testHeader, testFacilities, nil, strict())
	if len(res.Rejections) != 0 {
		t.Errorf("rejections = %v, want none", res.Rejections)
	}
	if len(res.Accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(res.Accepted))
	}
	if res.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", res.TotalRows)
	}
}

func TestImportRoster_RowNumbersFollowSheet(t *testing.T) {
	bad := goodRow("")
	rows := [][]string{goodRow("1"), make([]string, 3), bad}

	res := ImportRoster(rows, testHeader, testFacilities, nil, strict())
	if len(res.Rejections) != 1 || res.Rejections[0].Row != 4 {
		t.Errorf("rejections = %v, want row 4", res.Rejections)
	}
}

// =============================================================================
// Duplicate policy
// =============================================================================

func TestImportRoster_DuplicatesStrict(t *testing.T) {
	rows := [][]string{goodRow("555"), goodRow("555.0")}
	res := ImportRoster(rows, testHeader, testFacilities, nil, strict())

	if len(res.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(res.Accepted))
	}
	if len(res.Rejections) != 1 {
		t.Fatalf("rejections = %v, want 1", res.Rejections)
	}
	rej := res.Rejections[0]
	if rej.Row != 3 || rej.Reason != "Duplicado 555" || rej.Severity != SeverityWarning {
		t.Errorf("rejection = %+v, want row 3 'Duplicado 555' warning", rej)
	}
}

func TestImportRoster_DuplicatesAgainstExistingRoster(t *testing.T) {
	existing := map[string]struct{}{"555": {}}
	res := ImportRoster([][]string{goodRow("555")}, testHeader, testFacilities, existing, strict())

	if len(res.Accepted) != 0 || len(res.Rejections) != 1 {
		t.Fatalf("accepted=%d rejections=%v, want 0 and 1", len(res.Accepted), res.Rejections)
	}
	if len(existing) != 1 {
		t.Errorf("existingDocuments modified: %v", existing)
	}
}

func TestImportRoster_DuplicatesRelaxed(t *testing.T) {
	existing := map[string]struct{}{"555": {}}
	rows := [][]string{goodRow("555"), goodRow("555")}
	res := ImportRoster(rows, testHeader, testFacilities, existing, relaxed())

	if len(res.Accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(res.Accepted))
	}
	if len(res.Rejections) != 0 {
		t.Errorf("rejections = %v, want none", res.Rejections)
	}
}

// =============================================================================
// Location policies
// =============================================================================

func TestImportRoster_LocationsJoined(t *testing.T) {
	r := goodRow("1")
	r[testHeader[headerKey(ColLocations)]] = "anillo, cristalino"

	res := ImportRoster([][]string{r}, testHeader, testFacilities, nil, strict())
	if len(res.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(res.Accepted))
	}
	if got := res.Accepted[0].LocationsText(); got != "ANILLO, CRISTALINO" {
		t.Errorf("locations = %q, want joined", got)
	}
}

func TestImportRoster_LocationsExploded(t *testing.T) {
	p := strict()
	p.Locations = LocationsExploded

	r := goodRow("1")
	r[testHeader[headerKey(ColLocations)]] = "anillo; cristalino; fetal"

	res := ImportRoster([][]string{r, goodRow("2")}, testHeader, testFacilities, nil, p)
	if len(res.Accepted) != 4 {
		t.Fatalf("accepted = %d, want 4", len(res.Accepted))
	}
	wantLocs := []string{"ANILLO", "CRISTALINO", "FETAL"}
	for i, loc := range wantLocs {
		u := res.Accepted[i]
		if u.Document != "1" || len(u.Locations) != 1 || u.Locations[0] != loc {
			t.Errorf("accepted[%d] = doc %q locations %v, want doc 1 location %s", i, u.Document, u.Locations, loc)
		}
	}
}

func TestImportRoster_ExplodedResultAppendsToStrictRoster(t *testing.T) {
	p := strict()
	p.Locations = LocationsExploded

	r := goodRow("2")
	r[testHeader[headerKey(ColLocations)]] = "anillo; Anillo; FETAL"

	res := ImportRoster([][]string{goodRow("1"), r}, testHeader, testFacilities, nil, p)
	if len(res.Rejections) != 0 {
		t.Fatalf("rejections = %v, want none", res.Rejections)
	}
	if len(res.Accepted) != 3 {
		t.Fatalf("accepted = %d, want 3", len(res.Accepted))
	}

	roster := NewRoster(p)
	if err := roster.AppendMany(res.Accepted); err != nil {
		t.Errorf("AppendMany(accepted) = %v, want nil", err)
	}
}

func TestClaimKeys(t *testing.T) {
	keys := map[string]struct{}{"1|ANILLO": {}}
	a := UserRecord{Document: "1", Locations: []string{"ANILLO"}}
	b := UserRecord{Document: "2", Locations: []string{"FETAL"}}

	if claimKeys(keys, []UserRecord{b, a}, LocationsExploded) {
		t.Error("claimKeys with a taken key = true, want false")
	}
	if _, ok := keys["2|FETAL"]; ok {
		t.Error("failed claim left a key behind")
	}
	if claimKeys(keys, []UserRecord{b, b}, LocationsExploded) {
		t.Error("claimKeys with a repeated key = true, want false")
	}
	if !claimKeys(keys, []UserRecord{b, {}}, LocationsExploded) {
		t.Error("claimKeys(new key and keyless record) = false, want true")
	}
}

func TestImportRoster_BlankLocationPolicy(t *testing.T) {
	r := goodRow("1")
	r[testHeader[headerKey(ColLocations)]] = "NONE"

	allow := ImportRoster([][]string{r}, testHeader, testFacilities, nil, strict())
	if len(allow.Accepted) != 1 || len(allow.Accepted[0].Locations) != 0 {
		t.Errorf("allow: accepted = %+v, want one record without locations", allow.Accepted)
	}

	p := strict()
	p.BlankLocation = BlankLocationReject
	reject := ImportRoster([][]string{r}, testHeader, testFacilities, nil, p)
	if len(reject.Rejections) != 1 || reject.Rejections[0].Reason != ReasonMissingLocation {
		t.Errorf("reject: rejections = %v, want %q", reject.Rejections, ReasonMissingLocation)
	}
}

func TestImportRoster_StartDateFallback(t *testing.T) {
	restore := now
	now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }
	defer func() { now = restore }()

	r := goodRow("1")
	r[testHeader[headerKey(ColStartMonth)]] = "BRUMARIO"

	res := ImportRoster([][]string{r}, testHeader, testFacilities, nil, strict())
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if len(res.Accepted) != 1 || !res.Accepted[0].StartDate.Equal(want) {
		t.Errorf("StartDate = %v, want %v", res.Accepted[0].StartDate, want)
	}
}

// =============================================================================
// Header validation
// =============================================================================

func TestValidateHeader(t *testing.T) {
	if err := ValidateHeader(testHeader); err != nil {
		t.Errorf("ValidateHeader(template) = %v, want nil", err)
	}

	err := ValidateHeader(MakeHeaderIndex([]string{"Nombres", "Apellidos", "Sede"}))
	var he *HeaderError
	if !errors.As(err, &he) {
		t.Fatalf("ValidateHeader = %v, want *HeaderError", err)
	}
	if !reflect.DeepEqual(he.Missing, []string{ColDocument, ColLocations}) {
		t.Errorf("Missing = %v", he.Missing)
	}
	if MapError(err).Code != "VAL004" {
		t.Errorf("MapError code = %q, want VAL004", MapError(err).Code)
	}
}

func TestRejection_String(t *testing.T) {
	r := Rejection{Row: 7, Reason: ReasonUnknownFacility}
	if got := r.String(); got != "Fila 7: Sede incorrecta" {
		t.Errorf("String() = %q", got)
	}
}
