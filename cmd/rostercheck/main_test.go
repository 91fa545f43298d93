package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const roster = "Nombres;Apellidos;Documento;Correo;Sede;Ubicaciones\n" +
	"Ana;Pérez;1020;ana@clinica.co;Sede Norte;ANILLO\n" +
	"Luis;Gómez;2030;luis@clinica.co;Sede Sur;ANILLO\n"

func TestRun(t *testing.T) {
	path := writeFile(t, "usuarios.csv", roster)

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"all accepted", []string{"-sedes", "SEDE NORTE, SEDE SUR", path}, exitOK, "2 aceptadas, 0 rechazadas", ""},
		{"unknown facility rejected", []string{"-sedes", "SEDE NORTE", path}, exitRejected, "Fila 3: Sede incorrecta", ""},
		{"no facilities", []string{path}, exitFailed, "", "IMP001"},
		{"missing file argument", []string{"-sedes", "X"}, exitFailed, "", "usage"},
		{"unreadable file", []string{"-sedes", "X", filepath.Join(t.TempDir(), "nope.csv")}, exitFailed, "", "nope.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRun_JSON(t *testing.T) {
	path := writeFile(t, "usuarios.csv", roster)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-json", "-sedes", "SEDE NORTE", path}, &stdout, &stderr)
	if code != exitRejected {
		t.Fatalf("run() = %d, want %d", code, exitRejected)
	}

	var rep report
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.TotalRows != 2 || rep.Accepted != 1 || len(rep.Rejections) != 1 {
		t.Errorf("report = %+v, want 2 rows, 1 accepted, 1 rejection", rep)
	}
	if rep.Rejections[0].Row != 3 {
		t.Errorf("rejection row = %d, want 3", rep.Rejections[0].Row)
	}
}

func TestSplitNames(t *testing.T) {
	got := splitNames(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitNames = %q, want [a b]", got)
	}
	if splitNames("") != nil {
		t.Error("splitNames(\"\") should be nil")
	}
}
