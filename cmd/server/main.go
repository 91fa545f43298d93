package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sievert/ingreso/internal/archive"
	"github.com/sievert/ingreso/internal/config"
	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/geo"
	"github.com/sievert/ingreso/internal/logging"
	"github.com/sievert/ingreso/internal/notify"
	"github.com/sievert/ingreso/internal/sessionstore"
	"github.com/sievert/ingreso/internal/spreadsheet"
	"github.com/sievert/ingreso/internal/store"
	"github.com/sievert/ingreso/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.Database.URL, store.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	if cfg.Database.MigrateOnStart {
		if err := store.Migrate(cfg.Database.URL, slog.Default()); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}
	db := store.NewPostgres(pool, cfg.Upload.BatchSize)

	ready := map[string]web.ReadinessCheck{"database": db.Ping}

	var sessions core.SessionStore
	switch cfg.Session.Store {
	case "redis":
		rs, err := sessionstore.NewRedis(ctx, cfg.Session.RedisURL, cfg.Session.KeyPrefix, cfg.Session.TTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		sessions = rs
		ready["redis"] = rs.Ping
	default:
		sessions = sessionstore.NewMemory(cfg.Session.MaxEntries, cfg.Session.TTL)
	}
	slog.Info("session store ready", "backend", cfg.Session.Store, "ttl", cfg.Session.TTL)

	deps := core.Dependencies{
		Sessions:  sessions,
		Persister: db,
		Sheets:    spreadsheet.NewReader(),
	}

	if cfg.Mail.Enabled() {
		mailer, err := notify.New(notify.Config{
			Host:             cfg.Mail.Host,
			Port:             cfg.Mail.Port,
			Username:         cfg.Mail.Username,
			Password:         cfg.Mail.Password,
			TLSPolicy:        cfg.Mail.TLSPolicy,
			Timeout:          cfg.Mail.Timeout,
			From:             cfg.Mail.From,
			InternalTo:       cfg.Mail.InternalTo,
			PolicyAttachment: cfg.Mail.PolicyAttachment,
			PortalURL:        cfg.Mail.PortalURL,
		})
		if err != nil {
			slog.Error("failed to configure mail", "error", err)
			os.Exit(1)
		}
		deps.Notifier = mailer
	} else {
		slog.Warn("SMTP_HOST not set, confirmation e-mails are disabled")
	}

	if cfg.Archive.Enabled() {
		archiver, err := archive.New(ctx, archive.Config{
			Bucket:      cfg.Archive.Bucket,
			Prefix:      cfg.Archive.Prefix,
			KMSKeyID:    cfg.Archive.KMSKeyID,
			EndpointURL: cfg.Archive.EndpointURL,
		})
		if err != nil {
			slog.Error("failed to configure snapshot archive", "error", err)
			os.Exit(1)
		}
		deps.Archiver = archiver
	}

	cities, err := geo.Load(cfg.Geo.CitiesFile)
	if err != nil {
		slog.Warn("cities file unreadable, using built-in list", "path", cfg.Geo.CitiesFile, "error", err)
	}

	service, err := core.NewService(core.ServiceConfig{
		Policy:               cfg.Roster.Policy(),
		PersistTimeout:       cfg.Database.PersistTimeout,
		MailTimeout:          cfg.Mail.Timeout,
		ArchiveTimeout:       cfg.Archive.Timeout,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportMaxWait:        cfg.Import.MaxWaitTime,
	}, deps)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, web.Options{Geo: cities, Ready: ready})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight imports finish before closing connections
		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
