package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sievert/ingreso/internal/core"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"postgres://u:p@db:5432/ingreso?sslmode=disable", "pgx5://u:p@db:5432/ingreso?sslmode=disable", false},
		{"postgresql://u@db/ingreso", "pgx5://u@db/ingreso", false},
		{"pgx5://u@db/ingreso", "pgx5://u@db/ingreso", false},
		{"mysql://u@db/ingreso", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := migrateURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("migrateURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunks(t *testing.T) {
	rows := make([][]any, 5)

	tests := []struct {
		size int
		want []int
	}{
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{10, []int{5}},
		{1, []int{1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		got := chunks(rows, tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("chunks(5, %d) = %d chunks, want %d", tt.size, len(got), len(tt.want))
			continue
		}
		for i, c := range got {
			if len(c) != tt.want[i] {
				t.Errorf("chunks(5, %d)[%d] has %d rows, want %d", tt.size, i, len(c), tt.want[i])
			}
		}
	}

	if got := chunks(nil, 3); len(got) != 0 {
		t.Errorf("chunks(nil) = %d chunks, want 0", len(got))
	}
}

func TestUserRows(t *testing.T) {
	ids := map[string]int64{"SEDE NORTE": 11}
	users := []core.UserRecord{{
		FirstNames: "ANA",
		Document:   "1001",
		Facility:   "SEDE NORTE",
		Locations:  []string{"ANILLO", "CRISTALINO"},
		StartDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}}

	rows, err := userRows(7, ids, users)
	if err != nil {
		t.Fatalf("userRows: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != len(userColumns) {
		t.Fatalf("userRows shape = %d x %d, want 1 x %d", len(rows), len(rows[0]), len(userColumns))
	}
	row := rows[0]
	if row[0] != int64(7) || row[1] != int64(11) {
		t.Errorf("ids = %v, %v, want 7, 11", row[0], row[1])
	}
	if loc := row[17].(pgtype.Text); loc.String != "ANILLO, CRISTALINO" {
		t.Errorf("ubicaciones = %q", loc.String)
	}
	if last := row[3].(pgtype.Text); last.Valid {
		t.Errorf("empty apellidos should be NULL, got %+v", last)
	}
	if d := row[18].(pgtype.Date); !d.Valid || d.Time.Month() != time.March {
		t.Errorf("fecha_inicio = %+v", d)
	}
}

func TestUserRows_UnknownFacility(t *testing.T) {
	_, err := userRows(1, map[string]int64{}, []core.UserRecord{{Facility: "SEDE FANTASMA"}})
	if err == nil {
		t.Fatal("userRows with unknown facility succeeded")
	}
	if msg := core.MapError(err); msg.Code != "DB009" {
		t.Errorf("MapError code = %s, want DB009 (err: %v)", msg.Code, err)
	}
	if errors.Is(err, core.ErrAlreadyPersisted) {
		t.Error("unknown facility must not look like a replay")
	}
}

func TestCheckFacilityNames(t *testing.T) {
	ok := []core.FacilityRecord{{Name: "SEDE NORTE"}, {Name: "SEDE SUR"}}
	if err := checkFacilityNames(ok); err != nil {
		t.Errorf("checkFacilityNames(distinct) = %v, want nil", err)
	}

	dup := []core.FacilityRecord{{Name: "SEDE NORTE"}, {Name: "SEDE NORTE"}}
	if err := checkFacilityNames(dup); !errors.Is(err, core.ErrFacilityExists) {
		t.Errorf("checkFacilityNames(repeated) = %v, want ErrFacilityExists", err)
	}
}

func TestNewPostgres_DefaultBatchSize(t *testing.T) {
	if p := NewPostgres(nil, 0); p.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", p.batchSize, DefaultBatchSize)
	}
	if p := NewPostgres(nil, 50); p.batchSize != 50 {
		t.Errorf("batchSize = %d, want 50", p.batchSize)
	}
}
