// Package cmd implements the CLI application to manage personal finances.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/ryokushen/financial"
	"github.com/ryokushen/financial/store"
)

// Environment variables honored by every command, loadable from a .env file.
const (
	EnvDataDir  = "FIN_DATA_DIR"
	EnvMySQLDSN = "FIN_MYSQL_DSN"
	EnvVerbose  = "FIN_VERBOSE"
)

// Register the subcommands.
// A main package calls Register() and then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "transactions")
	c.Register(&transferCmd{}, "transactions")
	c.Register(&payCmd{}, "transactions")
	c.Register(&rmCmd{}, "transactions")

	c.Register(&txCmd{}, "reports")
	c.Register(&searchCmd{}, "reports")
	c.Register(&summaryCmd{}, "reports")

	c.Register(&importCmd{}, "data")
	c.Register(&exportCmd{}, "data")
	c.Register(&repairCmd{}, "data")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	dataDir  string
	mysqlDSN string
	verbose  bool
)

// SetupFlags binds the global flags, defaulting from the environment after
// loading an optional .env file.
func SetupFlags(f *flag.FlagSet) {
	// godotenv only fills variables that are not already set; a missing
	// .env file is fine.
	_ = godotenv.Load()

	f.StringVar(&dataDir, "data", envOr(EnvDataDir, ".fin"), "Directory holding the JSONL data files.")
	f.StringVar(&mysqlDSN, "mysql", os.Getenv(EnvMySQLDSN), "MySQL DSN; overrides -data when set.")
	f.BoolVar(&verbose, "v", os.Getenv(EnvVerbose) == "true", "Enable debug logging.")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logger builds the application logger honoring the -v flag.
func logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// openManager opens the configured store and builds a Manager on top of it.
// Callers own the returned manager and must Close it.
func openManager() (*financial.Manager, error) {
	var s financial.Store
	if mysqlDSN != "" {
		db, err := store.OpenMySQL(mysqlDSN)
		if err != nil {
			return nil, fmt.Errorf("opening mysql store: %w", err)
		}
		s = db
	} else {
		f, err := store.OpenFile(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening data directory %q: %w", dataDir, err)
		}
		s = f
	}
	return financial.NewManager(store.WithRetry(s), financial.WithLogger(logger())), nil
}

// printMarkdown renders markdown to the terminal, falling back to the raw
// text when rendering fails.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}

// fail prints an error and returns the failure exit status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// usageError prints a message and returns the usage-error exit status.
func usageError(msg string) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	return subcommands.ExitUsageError
}

// repeated collects a repeatable -key=value flag into a map.
type repeated map[string]string

func (r repeated) String() string {
	pairs := make([]string, 0, len(r))
	for k, v := range r {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (r repeated) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	r[strings.TrimSpace(key)] = strings.TrimSpace(value)
	return nil
}
