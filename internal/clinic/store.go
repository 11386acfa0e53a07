package clinic

import (
	"context"
	"fmt"
	"strings"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/auth"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/export"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/database"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/logging"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/search"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/stats"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/visit"
)

// Store is the single entry point to the clinic core. The interface
// layer reads and writes records only through it, never through the
// database directly; that is what lets every mutation invalidate its
// stat buckets before the caller gets control back.
type Store struct {
	db     *database.DB
	logger *logging.Logger

	patients patient.Repository
	visits   visit.Repository
	accounts auth.Repository
	authSvc  *auth.Service
	engine   *search.Engine
	cache    *stats.Cache
	exporter *export.Exporter
}

// Open opens the store file and runs pending migrations to completion
// before anything else may touch the data. A migration failure closes
// the pool and returns the error; the store is unusable in that case.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Store, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Storage.Path,
		PoolSize:    cfg.Storage.PoolSize,
		BusyTimeout: cfg.Storage.BusyTimeout,
		Durability:  cfg.Storage.Durability,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // migration error takes precedence
		return nil, err
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // version error takes precedence
		return nil, err
	}
	logger.Info("store opened", "schema_version", version)

	patients := patient.NewRepository(db.DB)
	visits := visit.NewRepository(db.DB)
	accounts := auth.NewRepository(db.DB)
	engine := search.NewEngine(db.DB)

	return &Store{
		db:       db,
		logger:   logger,
		patients: patients,
		visits:   visits,
		accounts: accounts,
		authSvc:  auth.NewService(accounts),
		engine:   engine,
		cache:    stats.NewCache(),
		exporter: export.NewExporter(engine, visits, cfg.Export.DefaultPageSize),
	}, nil
}

// Close releases the connection pool. Safe to call more than once.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return s.db.SchemaVersion(ctx)
}

// BackupTo writes a consistent point-in-time snapshot to destination.
func (s *Store) BackupTo(ctx context.Context, destination string) error {
	return s.db.BackupTo(ctx, destination)
}

// Patients.

// CreatePatient validates, persists, and assigns a reference number.
func (s *Store) CreatePatient(ctx context.Context, p *patient.Patient) error {
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.cache.Invalidate(stats.KeyTotalPatients)
	s.logger.Info("patient created", "patient_id", p.ID)
	return nil
}

// GetPatient retrieves a patient by internal ID.
func (s *Store) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// GetPatientByReference retrieves a patient by reference number.
func (s *Store) GetPatientByReference(ctx context.Context, ref int) (*patient.Patient, error) {
	return s.patients.GetByReference(ctx, ref)
}

// UpdatePatient modifies demographic fields. No aggregate depends on
// them, so nothing is invalidated.
func (s *Store) UpdatePatient(ctx context.Context, p *patient.Patient) error {
	return s.patients.Update(ctx, p)
}

// DeletePatient removes a patient and their visits, then invalidates
// the patient total, the visit total, and every day and month bucket a
// removed visit fell into.
func (s *Store) DeletePatient(ctx context.Context, id string) error {
	visitDates, err := s.patients.Delete(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{stats.KeyTotalPatients}
	if len(visitDates) > 0 {
		keys = append(keys, stats.KeyTotalVisits)
		for _, date := range visitDates {
			keys = append(keys, visitBuckets(date)...)
		}
	}
	s.cache.Invalidate(keys...)
	s.logger.Info("patient deleted", "patient_id", id, "visits_removed", len(visitDates))
	return nil
}

// ListPatients returns one page ordered by name, plus the total count.
func (s *Store) ListPatients(ctx context.Context, page, pageSize int) ([]patient.Patient, int, error) {
	return s.patients.List(ctx, page, pageSize)
}

// Visits.

// CreateVisit validates and persists a visit, then invalidates the
// visit total and the day and month buckets of its date.
func (s *Store) CreateVisit(ctx context.Context, v *visit.Visit) error {
	if err := s.visits.Create(ctx, v); err != nil {
		return err
	}
	s.cache.Invalidate(append([]string{stats.KeyTotalVisits}, visitBuckets(v.VisitDate)...)...)
	s.logger.Info("visit created", "visit_id", v.ID, "patient_id", v.PatientID)
	return nil
}

// GetVisit retrieves a visit by ID.
func (s *Store) GetVisit(ctx context.Context, id string) (*visit.Visit, error) {
	return s.visits.GetByID(ctx, id)
}

// UpdateVisit modifies a visit. The visit total is unchanged; only when
// the date moved do the old and new day/month buckets go stale.
func (s *Store) UpdateVisit(ctx context.Context, v *visit.Visit) error {
	oldDate, err := s.visits.Update(ctx, v)
	if err != nil {
		return err
	}
	if oldDate != v.VisitDate {
		s.cache.Invalidate(append(visitBuckets(oldDate), visitBuckets(v.VisitDate)...)...)
	}
	return nil
}

// DeleteVisit removes a visit and invalidates the visit total plus the
// buckets of its date.
func (s *Store) DeleteVisit(ctx context.Context, id string) error {
	date, err := s.visits.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.cache.Invalidate(append([]string{stats.KeyTotalVisits}, visitBuckets(date)...)...)
	return nil
}

// ListVisits returns one page of a patient's visits, newest first,
// optionally bounded by an inclusive date range.
func (s *Store) ListVisits(ctx context.Context, patientID string, page, pageSize int, from, to string) ([]visit.Visit, int, error) {
	return s.visits.ListByPatient(ctx, patientID, page, pageSize, from, to)
}

// VisitDetails returns visits joined with patient identity for a date
// range, newest first.
func (s *Store) VisitDetails(ctx context.Context, from, to string, limit, offset int) ([]visit.Detail, error) {
	return s.visits.ListDetailRange(ctx, from, to, limit, offset)
}

// PatientStats summarises one patient's visit history.
func (s *Store) PatientStats(ctx context.Context, patientID string) (*visit.PatientStats, error) {
	return s.visits.PatientStats(ctx, patientID)
}

// LastEncodedDate reports the most recent back-filled visit date.
func (s *Store) LastEncodedDate(ctx context.Context) (string, error) {
	return s.visits.LastEncodedDate(ctx)
}

// Accounts.

// CreateAccount hashes the password and stores a new account.
func (s *Store) CreateAccount(ctx context.Context, username, password string, role auth.Role) (*auth.Account, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &auth.Account{Username: username, PasswordHash: hash, Role: role}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", account.ID)
	return account, nil
}

// Authenticate verifies a username/password pair.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*auth.Account, error) {
	return s.authSvc.Authenticate(ctx, username, password)
}

// ChangePassword re-authenticates and stores a new password hash.
func (s *Store) ChangePassword(ctx context.Context, username, current, next string) error {
	return s.authSvc.ChangePassword(ctx, username, current, next)
}

// SeedAdmin creates the first admin account with a generated password
// when the store has no accounts. Returns the plaintext once, for
// display to the operator; it is never logged.
func (s *Store) SeedAdmin(ctx context.Context) (string, error) {
	return auth.SeedAdmin(ctx, s.accounts, s.logger)
}

// Search and stats.

// Search runs a filtered, paged patient query.
func (s *Store) Search(ctx context.Context, spec search.Spec) (*search.Result, error) {
	return s.engine.Search(ctx, spec)
}

// Stats returns the named aggregate, recomputing it only if a mutation
// since the last read marked it stale.
func (s *Store) Stats(ctx context.Context, key string) (int, error) {
	fn, err := s.computeFor(key)
	if err != nil {
		return 0, err
	}
	return s.cache.Value(ctx, key, fn)
}

// StatRecomputes reports how often a stat has been recomputed. Test hook.
func (s *Store) StatRecomputes(key string) int {
	return s.cache.Recomputes(key)
}

// Exports.

// ExportPatientsCSV streams search results to a CSV file.
func (s *Store) ExportPatientsCSV(ctx context.Context, spec search.Spec, destPath string) (int, error) {
	rows, err := s.exporter.ExportPatientsCSV(ctx, spec, destPath)
	if err != nil {
		return 0, err
	}
	s.logger.Info("patients exported", "rows", rows)
	return rows, nil
}

// ExportVisitsXLSX writes a visit report workbook for the date range.
func (s *Store) ExportVisitsXLSX(ctx context.Context, from, to, destPath string) (int, error) {
	rows, err := s.exporter.ExportVisitsXLSX(ctx, from, to, destPath)
	if err != nil {
		return 0, err
	}
	s.logger.Info("visits exported", "rows", rows)
	return rows, nil
}

// computeFor maps a stat key to its recompute query.
func (s *Store) computeFor(key string) (stats.ComputeFunc, error) {
	dayPrefix := stats.KeyVisitsOnDay("")
	monthPrefix := stats.KeyVisitsInMonth("")

	switch {
	case key == stats.KeyTotalPatients:
		return s.patients.Count, nil
	case key == stats.KeyTotalVisits:
		return s.visits.Count, nil
	case strings.HasPrefix(key, dayPrefix):
		date := strings.TrimPrefix(key, dayPrefix)
		return func(ctx context.Context) (int, error) {
			return s.visits.CountOnDate(ctx, date)
		}, nil
	case strings.HasPrefix(key, monthPrefix):
		month := strings.TrimPrefix(key, monthPrefix)
		return func(ctx context.Context) (int, error) {
			return s.visits.CountInMonth(ctx, month)
		}, nil
	default:
		return nil, fmt.Errorf("clinic: unknown stat %q", key)
	}
}

// visitBuckets lists the stat keys a visit on the given date feeds.
func visitBuckets(date string) []string {
	keys := []string{stats.KeyVisitsOnDay(date)}
	if len(date) >= 7 {
		keys = append(keys, stats.KeyVisitsInMonth(date[:7]))
	}
	return keys
}
