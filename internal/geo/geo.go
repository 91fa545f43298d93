// Package geo serves the department and municipality lists offered for
// client and facility addresses.
package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/spreadsheet"
)

const (
	colDepartment   = "Nombre Departamento"
	colMunicipality = "Nombre Municipio"
)

// Directory maps each department to its municipalities.
type Directory struct {
	byDepartment map[string][]string
}

// Backup is the directory used when no cities file can be read.
func Backup() *Directory {
	return &Directory{byDepartment: map[string][]string{
		"BOGOTA D.C.": {"BOGOTA D.C."},
		"ANTIOQUIA":   {"MEDELLIN"},
	}}
}

// Load reads a ';'-separated cities file with "Nombre Departamento" and
// "Nombre Municipio" columns, in UTF-8 or Windows-1252. On any failure it
// returns Backup() together with the error, so callers can log and go on.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Backup(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Backup(), fmt.Errorf("open cities file: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return Backup(), err
	}
	return d, nil
}

// Parse reads a cities CSV from r. Names are normalized like every other
// stored value: uppercase without accents.
func Parse(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(spreadsheet.Decode(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read cities header: %w", err)
	}
	idx := core.MakeHeaderIndex(header)
	deptCol, ok1 := idx.Index(colDepartment)
	muniCol, ok2 := idx.Index(colMunicipality)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("cities file needs columns %q and %q", colDepartment, colMunicipality)
	}

	seen := make(map[string]map[string]bool)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cities: %w", err)
		}
		if deptCol >= len(rec) || muniCol >= len(rec) {
			continue
		}
		dept, muni := core.Normalize(rec[deptCol]), core.Normalize(rec[muniCol])
		if dept == "" || muni == "" {
			continue
		}
		if seen[dept] == nil {
			seen[dept] = make(map[string]bool)
		}
		seen[dept][muni] = true
	}
	if len(seen) == 0 {
		return nil, errors.New("cities file has no rows")
	}

	d := &Directory{byDepartment: make(map[string][]string, len(seen))}
	for dept, munis := range seen {
		list := make([]string, 0, len(munis))
		for m := range munis {
			list = append(list, m)
		}
		sort.Strings(list)
		d.byDepartment[dept] = list
	}
	return d, nil
}

// Departments returns the department names in order.
func (d *Directory) Departments() []string {
	out := make([]string, 0, len(d.byDepartment))
	for k := range d.byDepartment {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Municipalities returns the municipalities of dept, or nil when unknown.
func (d *Directory) Municipalities(dept string) []string {
	list, ok := d.byDepartment[core.Normalize(dept)]
	if !ok {
		return nil
	}
	return append([]string(nil), list...)
}
