package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sievert/ingreso/internal/logging"
)

// ErrAlreadyPersisted is returned by a Persister when the submission key
// was stored before.
var ErrAlreadyPersisted = errors.New("submission already persisted")

// Default gateway timeouts.
const (
	DefaultPersistTimeout = 30 * time.Second
	DefaultMailTimeout    = 20 * time.Second
	DefaultArchiveTimeout = 15 * time.Second
)

// passwordAlphabet omits characters that are easy to misread.
const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// PasswordLength is the length of generated portal passwords.
const PasswordLength = 12

// SheetReader reads every row of an uploaded spreadsheet, header first.
type SheetReader interface {
	ReadRows(ctx context.Context, fileName string, r io.Reader) ([][]string, error)
}

// ServiceConfig carries the tunables of a Service.
type ServiceConfig struct {
	Policy               Policy
	PersistTimeout       time.Duration
	MailTimeout          time.Duration
	ArchiveTimeout       time.Duration
	MaxConcurrentImports int
	ImportMaxWait        time.Duration
}

// Dependencies are the collaborators of a Service. Archiver and Notifier
// may be nil.
type Dependencies struct {
	Sessions  SessionStore
	Persister Persister
	Notifier  Notifier
	Archiver  Archiver
	Sheets    SheetReader
}

// Service is the entry point for every onboarding operation.
// Mutations of one session are serialized; distinct sessions proceed in
// parallel.
type Service struct {
	sessions  SessionStore
	persister Persister
	notifier  Notifier
	archiver  Archiver
	sheets    SheetReader
	limiter   *ImportLimiter

	policy         Policy
	persistTimeout time.Duration
	mailTimeout    time.Duration
	archiveTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a Service. Sessions, Persister and Sheets are required.
func NewService(cfg ServiceConfig, deps Dependencies) (*Service, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Persister == nil {
		return nil, errors.New("persister is required")
	}
	if deps.Sheets == nil {
		return nil, errors.New("sheet reader is required")
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = DefaultMailTimeout
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = DefaultArchiveTimeout
	}
	if cfg.Policy.Duplicates == "" {
		cfg.Policy = DefaultPolicy()
	}

	return &Service{
		sessions:       deps.Sessions,
		persister:      deps.Persister,
		notifier:       deps.Notifier,
		archiver:       deps.Archiver,
		sheets:         deps.Sheets,
		limiter:        NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportMaxWait),
		policy:         cfg.Policy,
		persistTimeout: cfg.PersistTimeout,
		mailTimeout:    cfg.MailTimeout,
		archiveTimeout: cfg.ArchiveTimeout,
		locks:          make(map[string]*sessionLock),
	}, nil
}

// Policy returns the roster policy in force.
func (s *Service) Policy() Policy { return s.policy }

// Limiter exposes the import limiter for monitoring and shutdown.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// CreateSession starts a new, empty onboarding session.
func (s *Service) CreateSession(ctx context.Context) (*Session, error) {
	sess := NewSession(uuid.NewString(), s.policy)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	logging.WithFields(ctx, "session_id", sess.ID).Info("session created")
	return sess, nil
}

// GetSession loads a session.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.SetPolicy(s.policy)
	return sess, nil
}

// DeleteSession discards a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// update loads a session, applies fn and saves it when fn succeeds.
func (s *Service) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// SetClient replaces the client record.
func (s *Service) SetClient(ctx context.Context, id string, c ClientRecord) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SetClient(c)
	})
}

// AddFacility registers a facility.
func (s *Service) AddFacility(ctx context.Context, id string, f FacilityRecord) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		_, err := sess.AddFacility(f)
		return err
	})
}

// UpdateFacility edits the facility at index i.
func (s *Service) UpdateFacility(ctx context.Context, id string, i int, f FacilityRecord) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.UpdateFacility(i, f)
	})
}

// RemoveFacility deletes the facility at index i.
func (s *Service) RemoveFacility(ctx context.Context, id string, i int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.RemoveFacility(i)
	})
}

// AddUser appends a manually entered user.
func (s *Service) AddUser(ctx context.Context, id string, in ManualEntry) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.AddUser(in)
	})
}

// GenerateRows appends n placeholder users.
func (s *Service) GenerateRows(ctx context.Context, id string, n int, facility, technology, periodicity string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.GenerateRows(n, facility, technology, periodicity)
	})
}

// UpdateUser edits the roster record at index i.
func (s *Service) UpdateUser(ctx context.Context, id string, i int, rec UserRecord) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.UpdateUser(i, rec)
	})
}

// RemoveUser deletes the roster record at index i.
func (s *Service) RemoveUser(ctx context.Context, id string, i int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.RemoveUser(i)
	})
}

// ImportFile parses an uploaded spreadsheet and imports its rows into the
// session roster. Row-level problems are returned as rejections; only
// file-level problems are errors.
func (s *Service) ImportFile(ctx context.Context, id, fileName string, r io.Reader) (ImportResult, error) {
	var result ImportResult
	err := s.limiter.Run(ctx, func() error {
		log := logging.WithFields(ctx, "session_id", id, "file", fileName)
		start := time.Now()

		rows, err := s.sheets.ReadRows(ctx, fileName, r)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("empty file")
		}

		_, err = s.update(ctx, id, func(sess *Session) error {
			res, err := sess.Import(rows[1:], MakeHeaderIndex(rows[0]))
			result = res
			return err
		})
		if err != nil {
			return err
		}

		log.Info("roster imported",
			"rows", result.TotalRows,
			"accepted", len(result.Accepted),
			"rejected", len(result.Rejections),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// ExportSnapshot returns the session's snapshot document.
func (s *Service) ExportSnapshot(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return ExportSnapshot(sess)
}

// RestoreSnapshot replaces the session's data with a snapshot document.
func (s *Service) RestoreSnapshot(ctx context.Context, id string, data []byte) (*Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return ImportSnapshot(sess, data)
	})
}

// Status reports which sections of the session are complete.
func (s *Service) Status(ctx context.Context, id string) (SessionStatus, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return SessionStatus{}, err
	}
	return sess.Status(), nil
}

// Submit validates the session, stores it and sends notifications.
//
// A *ValidationIssue is returned when the data is incomplete. A failure to
// store is returned as a *GatewayError and leaves the session editable.
// Notification and archive failures do not fail the submission; they are
// reported in SubmitResult.Warnings.
func (s *Service) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	unlock := s.lock(id)
	defer unlock()

	start := time.Now()
	log := logging.WithFields(ctx, "session_id", id)

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Submitted {
		return nil, ErrSessionSubmitted
	}
	if issue := ValidateSession(sess); issue != nil {
		return nil, issue
	}

	creds, err := NewCredentials(sess.Client)
	if err != nil {
		return nil, fmt.Errorf("generate credentials: %w", err)
	}

	meta := RequestMetaFrom(ctx)
	sub := Submission{
		Key:         sess.ID,
		Client:      sess.Client,
		Facilities:  sess.Facilities,
		Users:       sess.Roster.Records(),
		Credentials: creds,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	stored, err := s.persister.SaveOnboarding(persistCtx, sub)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAlreadyPersisted) {
			// Stored by an earlier attempt whose session save was lost.
			if markErr := sess.MarkSubmitted(); markErr == nil {
				_ = s.sessions.Save(ctx, sess)
			}
		}
		log.Error("persist onboarding failed", "error", err)
		return nil, &GatewayError{Op: "persist onboarding", Err: err}
	}

	result := &SubmitResult{
		SessionID:     sess.ID,
		ClientID:      stored.ClientID,
		FacilityIDs:   stored.FacilityIDs,
		UsersInserted: stored.UsersInserted,
	}

	if err := sess.MarkSubmitted(); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		log.Error("save submitted session failed", "error", err)
		result.Warnings = append(result.Warnings, "No fue posible cerrar la sesión: "+err.Error())
	}

	result.Warnings = append(result.Warnings, s.notify(ctx, sess, creds)...)
	if w := s.archive(ctx, sess); w != "" {
		result.Warnings = append(result.Warnings, w)
	}

	result.Duration = time.Since(start)
	log.Info("onboarding submitted",
		"client_id", result.ClientID,
		"facilities", len(result.FacilityIDs),
		"users", result.UsersInserted,
		"warnings", len(result.Warnings),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (s *Service) notify(ctx context.Context, sess *Session, creds Credentials) []string {
	if s.notifier == nil {
		return nil
	}
	log := logging.WithFields(ctx, "session_id", sess.ID)
	notice := Notice{
		Client:     sess.Client,
		Facilities: len(sess.Facilities),
		Users:      sess.Roster.Len(),
		SessionID:  sess.ID,
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	var warnings []string
	if err := s.notifier.NotifyInternal(mailCtx, notice); err != nil {
		log.Warn("internal notification failed", "error", err)
		warnings = append(warnings, "No se envió la alerta interna: "+err.Error())
	}
	if IsValidEmail(sess.Client.Email) {
		if err := s.notifier.SendWelcome(mailCtx, notice, creds); err != nil {
			log.Warn("welcome email failed", "error", err, "to", sess.Client.Email)
			warnings = append(warnings, "No se envió el correo de bienvenida: "+err.Error())
		}
	}
	return warnings
}

func (s *Service) archive(ctx context.Context, sess *Session) string {
	if s.archiver == nil {
		return ""
	}
	data, err := ExportSnapshot(sess)
	if err == nil {
		archiveCtx, cancel := context.WithTimeout(ctx, s.archiveTimeout)
		err = s.archiver.ArchiveSnapshot(archiveCtx, sess.ID, data)
		cancel()
	}
	if err != nil {
		logging.WithFields(ctx, "session_id", sess.ID).Warn("snapshot archive failed", "error", err)
		return "No se archivó la copia de la solicitud: " + err.Error()
	}
	return ""
}

// NewCredentials builds portal credentials for a client. The username is
// the digits of the tax id (the e-mail when it has none); the password is
// random and only its bcrypt hash is meant to be stored.
func NewCredentials(c ClientRecord) (Credentials, error) {
	username := digitsOnly(c.TaxID)
	if username == "" {
		username = strings.ToLower(strings.TrimSpace(c.Email))
	}

	password, err := randomPassword(PasswordLength)
	if err != nil {
		return Credentials{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Credentials{}, fmt.Errorf("hash password: %w", err)
	}
	return Credentials{Username: username, Password: password, PasswordHash: string(hash)}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		k, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("random password: %w", err)
		}
		buf[i] = passwordAlphabet[k.Int64()]
	}
	return string(buf), nil
}
