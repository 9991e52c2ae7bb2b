package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/emotag/internal/config"
	"github.com/andresmejia3/emotag/internal/store"
)

var (
	// cfg is the shared configuration: defaults, then EMOTAG_*/POSTGRES_* env, then flags.
	// cfgErr holds an environment parse failure until a command runs.
	// Loaded before any init so every command's flag defaults reflect the environment.
	cfg, cfgErr = config.Load()

	// DB is the optional database connection shared by subcommands
	DB *store.Store
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "emotag",
	Short:   "Facial expression recognition with emoji annotation",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return fmt.Errorf("invalid environment configuration: %w", cfgErr)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// History is optional: only connect when a connection string was given
		if cfg.DatabaseURL == "" {
			return nil
		}
		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
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
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requireDB fails commands that only make sense with history enabled.
func requireDB() error {
	if DB == nil {
		return fmt.Errorf("no database configured (use --db or set POSTGRES_HOST)")
	}
	return nil
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "PostgreSQL connection string for session history (disabled when empty)")

	f.IntVarP(&cfg.SkipInterval, "skip", "n", cfg.SkipInterval, "Analyze every n-th frame of a video or live feed")
	f.BoolVar(&cfg.AllFaces, "all-faces", cfg.AllFaces, "Annotate every detected face instead of only the first")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for emoji selection (0 = time seeded)")

	f.StringVar(&cfg.Detector, "detector", cfg.Detector, "Face detector backend: pigo, cascade")
	f.StringVar(&cfg.CascadePath, "cascade", cfg.CascadePath, "Detector cascade file (pigo facefinder or OpenCV Haar XML)")
	f.Float64Var(&cfg.ScaleFactor, "scale-factor", cfg.ScaleFactor, "Detector pyramid scale step (> 1.0)")
	f.IntVar(&cfg.MinNeighbors, "min-neighbors", cfg.MinNeighbors, "Overlapping hits required per face (cascade)")
	f.IntVar(&cfg.MinFaceSize, "min-face-size", cfg.MinFaceSize, "Smallest face side in pixels")
	f.Float64Var(&cfg.MinQuality, "min-quality", cfg.MinQuality, "Minimum detection score (pigo)")

	f.StringVar(&cfg.Classifier, "classifier", cfg.Classifier, "Expression classifier backend: worker, dnn")
	f.StringVarP(&cfg.ModelPath, "model", "m", cfg.ModelPath, "Expression model file")
	f.StringVar(&cfg.WorkerScript, "worker-script", cfg.WorkerScript, "Python classifier worker script")
	f.StringVar(&cfg.WorkerTimeout, "worker-timeout", cfg.WorkerTimeout, "Timeout for the classifier to score a single face (0 = none; a timed-out worker is restarted)")

	f.StringVar(&cfg.Capture, "capture", cfg.Capture, "Video and camera backend: ffmpeg, gocv")

	f.StringVar(&cfg.RecordDir, "record", cfg.RecordDir, "Write a CBOR event log into this directory")
	f.StringVar(&cfg.SnapshotDir, "snapshots", cfg.SnapshotDir, "Save annotated JPEGs of frames with a face into this directory")
	f.StringVar(&cfg.ServeAddr, "serve", cfg.ServeAddr, "Broadcast frames and results to websocket clients on this address (e.g. :8080)")
	f.StringVar(&cfg.PublishEndpoint, "publish", cfg.PublishEndpoint, "Publish results on a ZMQ PUB endpoint (e.g. tcp://*:5556)")
}
