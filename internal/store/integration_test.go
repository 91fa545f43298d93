package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sievert/ingreso/internal/core"
)

// setupTestDB starts PostgreSQL in a container and applies the migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("ingreso_test"),
		postgres.WithUsername("ingreso"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := Migrate(dsn, logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := Migrate(dsn, logger); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	pool, err := Connect(ctx, dsn, PoolConfig{MaxConns: 4})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func testSubmission(key string, users int) core.Submission {
	sub := core.Submission{
		Key: key,
		Client: core.ClientRecord{
			LegalName: "CLINICA NORTE SAS",
			TaxID:     "900.123.456-7",
			Email:     "admin@clinica.co",
		},
		Facilities: []core.FacilityRecord{{Name: "SEDE NORTE"}, {Name: "SEDE SUR"}},
		Credentials: core.Credentials{
			Username:     "9001234567",
			PasswordHash: "$2a$10$hash",
		},
		IPAddress: "10.0.0.1",
	}
	for i := 0; i < users; i++ {
		facility := "SEDE NORTE"
		if i%2 == 1 {
			facility = "SEDE SUR"
		}
		sub.Users = append(sub.Users, core.UserRecord{
			FirstNames: "USUARIO",
			Document:   fmt.Sprintf("%d", 1000+i),
			Facility:   facility,
			Locations:  []string{"ANILLO"},
			StartDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return sub
}

func count(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestPostgres_SaveOnboarding(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	p := NewPostgres(pool, 2)

	res, err := p.SaveOnboarding(ctx, testSubmission("sess-1", 5))
	if err != nil {
		t.Fatalf("SaveOnboarding: %v", err)
	}
	if res.ClientID == 0 {
		t.Error("ClientID = 0")
	}
	if len(res.FacilityIDs) != 2 {
		t.Errorf("FacilityIDs = %v, want 2 entries", res.FacilityIDs)
	}
	if res.UsersInserted != 5 {
		t.Errorf("UsersInserted = %d, want 5", res.UsersInserted)
	}

	var south int
	err = pool.QueryRow(ctx,
		"SELECT count(*) FROM users WHERE facility_id = $1", res.FacilityIDs["SEDE SUR"],
	).Scan(&south)
	if err != nil {
		t.Fatalf("count south users: %v", err)
	}
	if south != 2 {
		t.Errorf("users at SEDE SUR = %d, want 2", south)
	}

	_, err = p.SaveOnboarding(ctx, testSubmission("sess-1", 5))
	if !errors.Is(err, core.ErrAlreadyPersisted) {
		t.Errorf("replay error = %v, want ErrAlreadyPersisted", err)
	}
	if n := count(t, pool, "clients"); n != 1 {
		t.Errorf("clients = %d after replay, want 1", n)
	}
}

func TestPostgres_UnknownFacilityRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	p := NewPostgres(pool, 100)

	sub := testSubmission("sess-2", 3)
	sub.Users[2].Facility = "SEDE FANTASMA"

	if _, err := p.SaveOnboarding(ctx, sub); err == nil {
		t.Fatal("SaveOnboarding succeeded with an unknown facility")
	}
	for _, table := range []string{"clients", "facilities", "users"} {
		if n := count(t, pool, table); n != 0 {
			t.Errorf("%s = %d after rollback, want 0", table, n)
		}
	}

	// The same key can be stored once the data is fixed.
	sub.Users[2].Facility = "SEDE NORTE"
	if _, err := p.SaveOnboarding(ctx, sub); err != nil {
		t.Errorf("retry after fix: %v", err)
	}
}
