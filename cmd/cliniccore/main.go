// Clinic Core - offline-first clinical records store
//
// This binary hosts the persistence core behind a small operational CLI:
// schema migration, status, backups, exports, and account seeding. The
// interactive application links the clinic package directly; this tool
// exists for unattended installs and cron jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	_ "github.com/JgvJalandoni/geneva-clinic-core/migrations"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/clinic"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/logging"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/search"
	"github.com/JgvJalandoni/geneva-clinic-core/internal/stats"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

const usage = `Usage: cliniccore <command> [flags]

Commands:
  migrate       apply pending schema migrations and exit
  status        print schema version and store statistics
  backup        write a consistent snapshot (--dest)
  export        export records (--format csv|xlsx, --dest, filters)
  merge         import patients and visits from another store (--source)
  stats         print dashboard aggregates
  create-admin  seed the first admin account

Environment:
  CLINICCORE_CONFIG  path to config file (default ` + defaultConfigPath + `)
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches one subcommand, separated from main for testability.
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}
	command, rest := args[0], args[1:]

	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		// Fresh machine, no config yet: built-in defaults.
		cfg = config.Default()
	}
	log := logging.New(cfg.Logging, version)
	log.Debug("starting clinic core", "version", version, "commit", commit, "build_date", date)

	store, err := clinic.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // best effort on shutdown

	switch command {
	case "migrate":
		return runMigrate(ctx, store)
	case "status":
		return runStatus(ctx, store)
	case "backup":
		return runBackup(ctx, store, rest)
	case "export":
		return runExport(ctx, store, cfg, rest)
	case "merge":
		return runMerge(ctx, store, rest)
	case "stats":
		return runStats(ctx, store)
	case "create-admin":
		return runCreateAdmin(ctx, store)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// runMigrate reports the version reached; the migrations themselves ran
// inside clinic.Open.
func runMigrate(ctx context.Context, store *clinic.Store) error {
	v, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("store is at schema version %d\n", v)
	return nil
}

func runStatus(ctx context.Context, store *clinic.Store) error {
	v, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	patients, err := store.Stats(ctx, stats.KeyTotalPatients)
	if err != nil {
		return err
	}
	visits, err := store.Stats(ctx, stats.KeyTotalVisits)
	if err != nil {
		return err
	}
	lastEncoded, err := store.LastEncodedDate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("schema version: %d\n", v)
	fmt.Printf("patients:       %d\n", patients)
	fmt.Printf("visits:         %d\n", visits)
	if lastEncoded != "" {
		fmt.Printf("last encoded:   %s\n", lastEncoded)
	}
	return nil
}

func runBackup(ctx context.Context, store *clinic.Store, args []string) error {
	flagSet := flag.NewFlagSet("backup", flag.ContinueOnError)
	dest := flagSet.String("dest", "", "destination file for the snapshot")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *dest == "" {
		*dest = fmt.Sprintf("clinic_backup_%s.db", time.Now().Format("20060102"))
	}

	if err := store.BackupTo(ctx, *dest); err != nil {
		return err
	}
	fmt.Printf("backup written to %s\n", *dest)
	return nil
}

func runExport(ctx context.Context, store *clinic.Store, cfg *config.Config, args []string) error {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	format := flagSet.String("format", "csv", "csv (patients) or xlsx (visit report)")
	dest := flagSet.String("dest", "", "destination file")
	from := flagSet.String("from", "", "visit range start YYYY-MM-DD (xlsx)")
	to := flagSet.String("to", "", "visit range end YYYY-MM-DD (xlsx)")
	sex := flagSet.String("sex", "", "filter patients by sex M|F (csv)")
	query := flagSet.String("query", "", "name or reference filter (csv)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	switch *format {
	case "csv":
		if *dest == "" {
			*dest = fmt.Sprintf("clinic_export_%s.csv", time.Now().Format("20060102"))
		}
		spec := search.Spec{Query: *query, Sex: patient.Sex(*sex), PageSize: cfg.Export.DefaultPageSize}
		rows, err := store.ExportPatientsCSV(ctx, spec, *dest)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d patients to %s\n", rows, *dest)
	case "xlsx":
		if *dest == "" {
			*dest = fmt.Sprintf("clinic_report_%s.xlsx", time.Now().Format("20060102"))
		}
		rows, err := store.ExportVisitsXLSX(ctx, *from, *to, *dest)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d visits to %s\n", rows, *dest)
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}
	return nil
}

func runMerge(ctx context.Context, store *clinic.Store, args []string) error {
	flagSet := flag.NewFlagSet("merge", flag.ContinueOnError)
	source := flagSet.String("source", "", "path to the store file to import")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *source == "" {
		return fmt.Errorf("merge requires --source")
	}

	result, err := store.MergeFrom(ctx, *source)
	if err != nil {
		return err
	}
	fmt.Printf("patients: %d added, %d skipped\n", result.PatientsAdded, result.PatientsSkipped)
	fmt.Printf("visits:   %d added, %d skipped\n", result.VisitsAdded, result.VisitsSkipped)
	return nil
}

func runStats(ctx context.Context, store *clinic.Store) error {
	today := time.Now().UTC().Format("2006-01-02")
	month := today[:7]

	rows := []struct {
		label string
		key   string
	}{
		{"total patients", stats.KeyTotalPatients},
		{"total visits", stats.KeyTotalVisits},
		{"visits today", stats.KeyVisitsOnDay(today)},
		{"visits this month", stats.KeyVisitsInMonth(month)},
	}
	for _, row := range rows {
		n, err := store.Stats(ctx, row.key)
		if err != nil {
			return err
		}
		fmt.Printf("%-18s %d\n", row.label+":", n)
	}
	return nil
}

func runCreateAdmin(ctx context.Context, store *clinic.Store) error {
	password, err := store.SeedAdmin(ctx)
	if err != nil {
		return err
	}
	if password == "" {
		fmt.Println("an account already exists; nothing to do")
		return nil
	}

	// One-time display. The password is not recoverable later.
	fmt.Println("admin account created")
	fmt.Printf("  username: admin\n")
	fmt.Printf("  password: %s\n", password)
	fmt.Println("change this password after first login")
	return nil
}

// getConfigPath returns the configuration file path.
// Checks CLINICCORE_CONFIG, falls back to the default.
func getConfigPath() string {
	if path := os.Getenv("CLINICCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
