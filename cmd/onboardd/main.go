package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/qkeluna/lunaxcode-onboarding/internal/api"
	"github.com/qkeluna/lunaxcode-onboarding/internal/flow"
	"github.com/qkeluna/lunaxcode-onboarding/internal/lockfile"
	"github.com/qkeluna/lunaxcode-onboarding/internal/notify"
	"github.com/qkeluna/lunaxcode-onboarding/internal/progress"
	"github.com/qkeluna/lunaxcode-onboarding/internal/store"
	"github.com/qkeluna/lunaxcode-onboarding/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for onboarding state data
	DefaultStateDir = "/var/lib/onboardd"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "onboarding.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Hold the state directory for the lifetime of the process.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err, "state_dir", *flags.stateDir)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	tracker := progress.NewTracker(st)
	notifier := buildNotifier()
	engine := flow.NewEngine(st, tracker, notifier)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(engine, tracker, st, apiOpts...)

	slog.Info("Bootstrapping onboarding service", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "")
	if err := server.Run(); err != nil {
		slog.Error("Onboarding service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Onboarding service exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver    string
	DatabaseURL string
	StateDir    string
	APIAddr     string
	LogLevel    string
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDriver *string
	dbDSN    *string
	apiAddr  *string
}

// initializeLogger sets up structured logging at the level named by $LOG_LEVEL.
func initializeLogger() {
	level := util.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:    os.Getenv("ONBOARD_DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("ONBOARD_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ONBOARD_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// With no database URL, default to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"ONBOARD_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ONBOARD_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"LOG_LEVEL", config.LogLevel)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "state directory for onboarding data (overrides $ONBOARD_STATE_DIR)"),
		dbDriver: flag.String("db-driver", config.DbDriver, "database driver, sqlite3 or postgres (overrides $ONBOARD_DB_DRIVER)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN, file path or connection string (overrides $DATABASE_URL)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr)

	// Follow a relocated state directory when the DSN was left at its default.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// openStore selects the storage backend from the driver flag or, failing that,
// the shape of the DSN.
func openStore(flags Flags) (store.Store, error) {
	driver := *flags.dbDriver
	if driver == "" {
		driver = store.DetectDSNType(*flags.dbDSN)
		slog.Debug("Detected database driver from DSN", "driver", driver)
	}

	switch driver {
	case "postgres":
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		slog.Info("Using SQLite store", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
}

// buildNotifier creates the Twilio SMS notifier when credentials are present.
// Submission alerts are optional; the service runs without them.
func buildNotifier() flow.Notifier {
	if util.ParseBoolEnv("ONBOARD_ALERTS_DISABLED", false) {
		slog.Info("Submission alerts disabled via ONBOARD_ALERTS_DISABLED")
		return nil
	}
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" || os.Getenv("TWILIO_AUTH_TOKEN") == "" {
		slog.Info("Twilio credentials not configured, submission alerts disabled")
		return nil
	}
	client, err := notify.NewClient()
	if err != nil {
		slog.Warn("Failed to configure Twilio notifier, submission alerts disabled", "error", err)
		return nil
	}
	slog.Info("Twilio submission alerts enabled")
	return client
}
