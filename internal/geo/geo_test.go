package geo

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const citiesCSV = `Código Departamento;Nombre Departamento;Código Municipio;Nombre Municipio
05;Antioquia;05001;Medellín
05;Antioquia;05002;Abejorral
11;Bogotá D.C.;11001;Bogotá D.C.
05;ANTIOQUIA;05001;MEDELLIN
`

func TestParse(t *testing.T) {
	d, err := Parse(strings.NewReader(citiesCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := d.Departments(), []string{"ANTIOQUIA", "BOGOTA D.C."}; !reflect.DeepEqual(got, want) {
		t.Errorf("Departments() = %v, want %v", got, want)
	}
	if got, want := d.Municipalities("antioquia"), []string{"ABEJORRAL", "MEDELLIN"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Municipalities(antioquia) = %v, want %v", got, want)
	}
	if got := d.Municipalities("Atlántico"); got != nil {
		t.Errorf("Municipalities(unknown) = %v, want nil", got)
	}
}

func TestParse_Latin1(t *testing.T) {
	// "Bogotá" in Windows-1252.
	in := "Nombre Departamento;Nombre Municipio\nBogot\xe1;Bogot\xe1\n"

	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := d.Municipalities("BOGOTA"); !reflect.DeepEqual(got, []string{"BOGOTA"}) {
		t.Errorf("Municipalities(BOGOTA) = %v", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing columns", "Departamento;Municipio\nA;B\n"},
		{"header only", "Nombre Departamento;Nombre Municipio\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.in)); err == nil {
				t.Error("Parse succeeded, want error")
			}
		})
	}
}

func TestMunicipalitiesIsACopy(t *testing.T) {
	d := Backup()
	got := d.Municipalities("ANTIOQUIA")
	got[0] = "CHANGED"
	if d.Municipalities("ANTIOQUIA")[0] != "MEDELLIN" {
		t.Error("directory modified through Municipalities()")
	}
}

func TestLoad(t *testing.T) {
	t.Run("no path uses backup", func(t *testing.T) {
		d, err := Load("")
		if err != nil {
			t.Fatalf("Load(\"\") error = %v", err)
		}
		if len(d.Departments()) != 2 {
			t.Errorf("Departments() = %v, want backup", d.Departments())
		}
	})

	t.Run("missing file falls back", func(t *testing.T) {
		d, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
		if err == nil {
			t.Error("Load(missing) error = nil, want error")
		}
		if d == nil || len(d.Departments()) != 2 {
			t.Errorf("Load(missing) did not return the backup")
		}
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ciudades.csv")
		if err := os.WriteFile(path, []byte(citiesCSV), 0o600); err != nil {
			t.Fatal(err)
		}
		d, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got := d.Municipalities("ANTIOQUIA"); len(got) != 2 {
			t.Errorf("Municipalities(ANTIOQUIA) = %v", got)
		}
	})
}
