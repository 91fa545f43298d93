package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sievert/ingreso/internal/core"
)

func openTemplate(t *testing.T, facilities []string) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, facilities))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func definedNames(f *excelize.File) map[string]string {
	out := make(map[string]string)
	for _, dn := range f.GetDefinedName() {
		out[dn.Name] = dn.RefersTo
	}
	return out
}

func TestWriteTemplate_Layout(t *testing.T) {
	f := openTemplate(t, []string{"SEDE NORTE", "SEDE SUR"})

	assert.Equal(t, []string{TemplateSheet, ListsSheet}, f.GetSheetList())

	visible, err := f.GetSheetVisible(ListsSheet)
	require.NoError(t, err)
	assert.False(t, visible, "lists sheet must be hidden")

	rows, err := f.GetRows(TemplateSheet)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, core.TemplateColumns, rows[0])
}

func TestWriteTemplate_DefinedNames(t *testing.T) {
	f := openTemplate(t, []string{"SEDE NORTE", "SEDE SUR"})
	names := definedNames(f)

	for _, key := range listOrder {
		assert.Contains(t, names, key)
	}
	assert.Equal(t, "Listas!$G$1:$G$2", names[facilityKey])
	assert.Equal(t, "Listas!$K$1:$K$12", names["MESES"])

	v, err := f.GetCellValue(ListsSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "SEDE SUR", v)
}

func TestWriteTemplate_NoFacilities(t *testing.T) {
	f := openTemplate(t, nil)

	v, err := f.GetCellValue(ListsSheet, "G1")
	require.NoError(t, err)
	assert.Equal(t, NoFacilities, v)
	assert.Equal(t, "Listas!$G$1:$G$1", definedNames(f)[facilityKey])
}

func TestWriteTemplate_Validations(t *testing.T) {
	f := openTemplate(t, []string{"SEDE NORTE"})

	dvs, err := f.GetDataValidations(TemplateSheet)
	require.NoError(t, err)
	assert.Len(t, dvs, len(columnLists)+1)

	header := core.MakeHeaderIndex(core.TemplateColumns)
	want, err := columnRange(header, core.ColFacility)
	require.NoError(t, err)

	var found bool
	for _, dv := range dvs {
		if dv.Sqref == want {
			found = true
			assert.Contains(t, dv.Formula1, facilityKey)
		}
	}
	assert.True(t, found, "no validation on %s", want)
}

func TestColumnRange(t *testing.T) {
	header := core.MakeHeaderIndex(core.TemplateColumns)

	got, err := columnRange(header, core.ColFirstNames)
	require.NoError(t, err)
	assert.Equal(t, "A2:A1001", got)

	_, err = columnRange(header, "Nope")
	assert.Error(t, err)
}
