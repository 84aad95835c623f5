package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/storage"
)

// Build metadata, overridden at link time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// DefaultDBPath is the index location relative to the working directory.
const DefaultDBPath = ".codemate/index.db"

// Exit codes: 0 success, 1 runtime failure, 2 usage error.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// errUsage marks argument validation failures so Execute can map them
// to exit code 2.
var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// exactArgs is cobra.ExactArgs with the usage-error exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

// app carries the global flag state shared by every command.
type app struct {
	dbPath  string
	verbose bool
}

func (a *app) openStore() (*storage.SQLiteStorage, error) {
	return storage.NewSQLiteStorage(a.dbPath)
}

// openExistingStore fails when no index exists yet, so read commands
// do not silently create an empty database.
func (a *app) openExistingStore() (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(a.dbPath); err != nil {
		return nil, fmt.Errorf("no index at %s (run 'codemate index' first)", a.dbPath)
	}
	return a.openStore()
}

func (a *app) newEmbedder() (embedder.Embedder, error) {
	return embedder.NewFromEnv()
}

func (a *app) logf(format string, args ...interface{}) {
	if a.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "codemate",
		Short: "Local code intelligence: semantic chunking, hybrid search, and a code graph",
		Long: `codemate indexes source repositories into a local SQLite database and
answers questions about them: hybrid semantic search, call graphs,
and the full location history of every piece of code.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&a.dbPath, "database", DefaultDBPath, "path to the index database")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output on stderr")

	root.AddCommand(
		newIndexCommand(a),
		newSearchCommand(a),
		newStatsCommand(a),
		newHistoryCommand(a),
		newGraphCommand(a),
		newServeCommand(a),
	)
	return root
}

func versionString() string {
	return fmt.Sprintf("codemate %s (built %s, %s, driver %s, vector extension %v)",
		Version, BuildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitOK
}
