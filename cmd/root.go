package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/faceid/internal/logging"
	"github.com/andresmejia3/faceid/internal/store"
	"github.com/andresmejia3/faceid/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds the configuration shared by the identification and gallery commands
type Options struct {
	GalleryDir string
	Probe      string
	Threshold  float64
	Tolerance  float64
	Backend    string
	WorkerCmd  string
	ModelDir   string
	UseCNN     bool
	NumEngines int
	OutputPath string
	RenderDir  string
}

var (
	// DB is the optional export database, connected only when a URL is configured
	DB *store.Store
	// dbURL is the connection string
	dbURL   string
	verbose bool
	logger  *slog.Logger

	opts Options
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "faceid",
	Short: "Identify faces in probe images against a gallery of known people",
	Long: `faceid encodes every image of a gallery directory, then matches each face
found in a probe image (or every image of a probe directory) against it.

Batch runs write their results to --output and, when a database is configured,
export them to PostgreSQL.`,
	Version: Version, // This enables the --version flag
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, verbose)

		envFallback(cmd, "gallery", "FACEID_GALLERY", &opts.GalleryDir)
		envFallback(cmd, "probe", "FACEID_PROBE", &opts.Probe)
		envFallback(cmd, "backend", "FACEID_BACKEND", &opts.Backend)
		envFallback(cmd, "worker-cmd", "FACEID_WORKER_CMD", &opts.WorkerCmd)
		envFallback(cmd, "models", "FACEID_MODELS", &opts.ModelDir)

		dbURL = resolveDBURL(dbURL, os.Getenv)
		if dbURL == "" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		var err error
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return &runError{context: "Failed to connect to database", err: err}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIdentify(cmd.Context(), opts)
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var re *runError
		if errors.As(err, &re) {
			utils.ShowError(re.context, re.err, re.cmd)
		} else {
			utils.ShowError("Command failed", err, nil)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SilenceErrors = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbURL, "db", "", "PostgreSQL connection string for exporting runs (default: $DATABASE_URL or POSTGRES_* variables)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&opts.GalleryDir, "gallery", "gallery", "Directory of labeled gallery images ($FACEID_GALLERY)")
	pf.Float64Var(&opts.Tolerance, "tolerance", 0.6, "Library match tolerance (a gallery face matches when its distance is at most this)")
	pf.StringVar(&opts.Backend, "backend", backendWorker, "Extraction backend: worker or dlib ($FACEID_BACKEND)")
	pf.StringVar(&opts.WorkerCmd, "worker-cmd", "python3 -u python/face_worker.py", "Command that starts a face worker ($FACEID_WORKER_CMD)")
	pf.StringVar(&opts.ModelDir, "models", "models", "Directory holding the dlib model files ($FACEID_MODELS)")
	pf.BoolVar(&opts.UseCNN, "cnn", false, "Use the dlib CNN face detector (dlib backend only)")
	pf.StringVar(&opts.RenderDir, "render-dir", "", "Write annotated copies of each probe into this directory")

	rootCmd.Flags().StringVar(&opts.Probe, "probe", "probe.jpg", "Probe image or directory of probe images ($FACEID_PROBE)")
	rootCmd.Flags().Float64VarP(&opts.Threshold, "threshold", "t", 0.6, "Confidence threshold: the best distance must be below this to identify")
	rootCmd.Flags().IntVarP(&opts.NumEngines, "engines", "e", 1, "Number of parallel extraction engines for directory probes")
	rootCmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "results.json", "Result file for directory probes (.json, .yaml or .yml)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// envFallback fills target from the environment unless the flag was set explicitly.
func envFallback(cmd *cobra.Command, flag, env string, target *string) {
	if f := cmd.Flags().Lookup(flag); f == nil || f.Changed {
		return
	}
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}

// resolveDBURL picks the export database: the flag, then DATABASE_URL, then a
// URL built from the POSTGRES_* variables. Empty means no export.
func resolveDBURL(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if url := getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
}

// runError carries the diagnostic box shown when a command fails.
type runError struct {
	context string
	err     error
	cmd     *utils.SafeCommand
}

func (e *runError) Error() string { return fmt.Sprintf("%s: %v", e.context, e.err) }

func (e *runError) Unwrap() error { return e.err }
