package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sievert/ingreso/internal/core"
)

// DefaultBatchSize is the number of users sent per COPY when none is set.
const DefaultBatchSize = 1000

var userColumns = []string{
	"client_id", "facility_id", "nombres", "apellidos", "tipo_doc", "documento",
	"correo", "fecha_nacimiento", "genero", "nivel_educativo", "titulo",
	"ocupacion", "area", "otra_area", "cobertura", "tecnologia", "periodicidad",
	"ubicaciones", "fecha_inicio",
}

const insertClient = `
INSERT INTO clients (
    submission_id, razon_social, nit, email, telefono, responsable, cargo,
    direccion, departamento, municipio, portal_username, portal_password,
    ip_address, user_agent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (submission_id) DO NOTHING
RETURNING id`

const insertFacility = `
INSERT INTO facilities (
    client_id, nombre, direccion, departamento, municipio, responsable, email, telefono
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

// Postgres is the core.Persister backed by a pgx pool.
type Postgres struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewPostgres creates a Postgres persister. batchSize bounds each COPY of
// users.
func NewPostgres(pool *pgxpool.Pool, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Postgres{pool: pool, batchSize: batchSize}
}

// SaveOnboarding stores the client, its facilities and the roster in one
// transaction. A submission key stored before yields core.ErrAlreadyPersisted
// and nothing is written.
func (p *Postgres) SaveOnboarding(ctx context.Context, sub core.Submission) (core.PersistResult, error) {
	var result core.PersistResult

	if err := checkFacilityNames(sub.Facilities); err != nil {
		return result, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	clientID, err := saveClient(ctx, tx, sub)
	if err != nil {
		return result, err
	}

	facilityIDs := make(map[string]int64, len(sub.Facilities))
	for _, f := range sub.Facilities {
		var id int64
		err := tx.QueryRow(ctx, insertFacility,
			clientID, f.Name, core.ToPgText(f.Address), core.ToPgText(f.Department),
			core.ToPgText(f.Municipality), core.ToPgText(f.Responsible),
			core.ToPgText(f.Email), core.ToPgText(f.Phone),
		).Scan(&id)
		if err != nil {
			return result, fmt.Errorf("insert facility %q: %w", f.Name, err)
		}
		facilityIDs[f.Name] = id
	}

	rows, err := userRows(clientID, facilityIDs, sub.Users)
	if err != nil {
		return result, err
	}

	var inserted int64
	for _, chunk := range chunks(rows, p.batchSize) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"users"}, userColumns, pgx.CopyFromRows(chunk))
		if err != nil {
			return result, fmt.Errorf("copy users: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}

	result.ClientID = clientID
	result.FacilityIDs = facilityIDs
	result.UsersInserted = inserted
	return result, nil
}

func saveClient(ctx context.Context, tx pgx.Tx, sub core.Submission) (int64, error) {
	c := sub.Client
	var id int64
	err := tx.QueryRow(ctx, insertClient,
		sub.Key, c.LegalName, core.ToPgText(c.TaxID), core.ToPgText(c.Email),
		core.ToPgText(c.Phone), core.ToPgText(c.ResponsibleName),
		core.ToPgText(c.ResponsibleTitle), core.ToPgText(c.Address),
		core.ToPgText(c.Department), core.ToPgText(c.Municipality),
		sub.Credentials.Username, sub.Credentials.PasswordHash,
		core.ToPgText(sub.IPAddress), core.ToPgText(sub.UserAgent),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, core.ErrAlreadyPersisted
	}
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return id, nil
}

// checkFacilityNames refuses facilities that share a name: users are
// linked to facilities by name, so a repeat would be ambiguous.
func checkFacilityNames(fs []core.FacilityRecord) error {
	seen := make(map[string]struct{}, len(fs))
	for _, f := range fs {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("insert facility %q: %w", f.Name, core.ErrFacilityExists)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// userRows builds COPY rows. A user whose facility has no id fails the
// whole submission rather than being dropped.
func userRows(clientID int64, facilityIDs map[string]int64, users []core.UserRecord) ([][]any, error) {
	rows := make([][]any, 0, len(users))
	for i, u := range users {
		facilityID, ok := facilityIDs[u.Facility]
		if !ok {
			return nil, fmt.Errorf("facility not persisted: %q (user row %d)", u.Facility, i+1)
		}
		rows = append(rows, []any{
			clientID, facilityID,
			core.ToPgText(u.FirstNames), core.ToPgText(u.LastNames),
			core.ToPgText(u.DocType), core.ToPgText(u.Document),
			core.ToPgText(u.Email), core.ToPgText(u.BirthDate),
			core.ToPgText(u.Gender), core.ToPgText(u.EducationLevel),
			core.ToPgText(u.JobTitle), core.ToPgText(u.Occupation),
			core.ToPgText(u.Area), core.ToPgText(u.OtherArea),
			core.ToPgText(u.Coverage), core.ToPgText(u.Technology),
			core.ToPgText(u.Periodicity), core.ToPgText(u.LocationsText()),
			core.TimeToPgDate(u.StartDate),
		})
	}
	return rows, nil
}

func chunks(rows [][]any, size int) [][][]any {
	var out [][][]any
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
