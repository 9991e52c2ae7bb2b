package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/emotag/internal/types"
)

// Detector and classifier backends.
const (
	DetectorPigo    = "pigo"
	DetectorCascade = "cascade"

	ClassifierWorker = "worker"
	ClassifierDNN    = "dnn"

	CaptureFFmpeg = "ffmpeg"
	CaptureGoCV   = "gocv"
)

// Config holds shared configuration for the image, video and live commands
type Config struct {
	SkipInterval int
	AllFaces     bool
	Seed         int64

	Detector     string
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	MinFaceSize  int
	MinQuality   float64

	Classifier    string
	ModelPath     string
	WorkerScript  string
	WorkerTimeout string

	Capture      string
	CameraDevice int
	CameraFormat string

	RecordDir       string
	SnapshotDir     string
	ServeAddr       string
	PublishEndpoint string
	DatabaseURL     string
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		SkipInterval:  5,
		Detector:      DetectorPigo,
		CascadePath:   "cascade/facefinder",
		ScaleFactor:   1.1,
		MinNeighbors:  5,
		MinFaceSize:   30,
		MinQuality:    5.0,
		Classifier:    ClassifierWorker,
		ModelPath:     "Model.h5",
		WorkerScript:  "python/classifier.py",
		WorkerTimeout: "0",
		Capture:       CaptureFFmpeg,
		CameraFormat:  "v4l2",
	}
}

// Load returns Default overlaid with EMOTAG_* environment variables.
func Load() (Config, error) {
	return FromEnv(Default(), os.Getenv)
}

// FromEnv overlays cfg with values found through getenv.
func FromEnv(cfg Config, getenv func(string) string) (Config, error) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var err error
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = f
		}
	}

	integer("EMOTAG_SKIP_INTERVAL", &cfg.SkipInterval)
	str("EMOTAG_DETECTOR", &cfg.Detector)
	str("EMOTAG_CASCADE", &cfg.CascadePath)
	float("EMOTAG_SCALE_FACTOR", &cfg.ScaleFactor)
	integer("EMOTAG_MIN_NEIGHBORS", &cfg.MinNeighbors)
	integer("EMOTAG_MIN_FACE_SIZE", &cfg.MinFaceSize)
	str("EMOTAG_CLASSIFIER", &cfg.Classifier)
	str("EMOTAG_MODEL", &cfg.ModelPath)
	str("EMOTAG_WORKER_SCRIPT", &cfg.WorkerScript)
	str("EMOTAG_CAPTURE", &cfg.Capture)
	integer("EMOTAG_CAMERA", &cfg.CameraDevice)
	str("EMOTAG_DB", &cfg.DatabaseURL)
	float("EMOTAG_MIN_QUALITY", &cfg.MinQuality)
	str("EMOTAG_WORKER_TIMEOUT", &cfg.WorkerTimeout)
	str("EMOTAG_CAMERA_FORMAT", &cfg.CameraFormat)
	str("EMOTAG_RECORD", &cfg.RecordDir)
	str("EMOTAG_SNAPSHOTS", &cfg.SnapshotDir)
	str("EMOTAG_SERVE", &cfg.ServeAddr)
	str("EMOTAG_PUBLISH", &cfg.PublishEndpoint)
	if v := getenv("EMOTAG_SEED"); v != "" && err == nil {
		seed, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			err = fmt.Errorf("EMOTAG_SEED: %w", perr)
		}
		cfg.Seed = seed
	}
	if v := getenv("EMOTAG_ALL_FACES"); v != "" && err == nil {
		all, perr := strconv.ParseBool(v)
		if perr != nil {
			err = fmt.Errorf("EMOTAG_ALL_FACES: %w", perr)
		}
		cfg.AllFaces = all
	}
	if err != nil {
		return cfg, err
	}

	// Build the connection string from the Postgres environment, as the compose setup exports it
	if cfg.DatabaseURL == "" {
		if host := getenv("POSTGRES_HOST"); host != "" {
			port := getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
				getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
		}
	}
	return cfg, nil
}

// Validate checks the configuration before any model or source is touched.
func (c Config) Validate() error {
	if c.SkipInterval < 1 {
		return fmt.Errorf("skip interval must be >= 1, got %d", c.SkipInterval)
	}
	if c.ScaleFactor <= 1.0 {
		return fmt.Errorf("scale factor must be > 1.0, got %f", c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must be >= 0, got %d", c.MinNeighbors)
	}
	if c.MinFaceSize < 1 {
		return fmt.Errorf("min face size must be >= 1, got %d", c.MinFaceSize)
	}
	switch c.Detector {
	case DetectorPigo, DetectorCascade:
	default:
		return fmt.Errorf("unknown detector %q (want %s or %s)", c.Detector, DetectorPigo, DetectorCascade)
	}
	switch c.Classifier {
	case ClassifierWorker, ClassifierDNN:
	default:
		return fmt.Errorf("unknown classifier %q (want %s or %s)", c.Classifier, ClassifierWorker, ClassifierDNN)
	}
	switch c.Capture {
	case CaptureFFmpeg, CaptureGoCV:
	default:
		return fmt.Errorf("unknown capture backend %q (want %s or %s)", c.Capture, CaptureFFmpeg, CaptureGoCV)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	// OpenCV's dnn module cannot read Keras HDF5 files
	if c.Classifier == ClassifierDNN && strings.EqualFold(filepath.Ext(c.ModelPath), ".h5") {
		return fmt.Errorf("the %s classifier cannot load %s: export the Keras model to ONNX (e.g. tf2onnx) and pass the .onnx file with --model", ClassifierDNN, c.ModelPath)
	}
	d, err := time.ParseDuration(c.WorkerTimeout)
	if err != nil {
		return fmt.Errorf("invalid worker-timeout format (use '0', '30s', '1m'): %w", err)
	}
	if d < 0 {
		return fmt.Errorf("worker timeout must be >= 0, got %s", d)
	}
	if c.CameraDevice < 0 {
		return fmt.Errorf("camera device must be >= 0, got %d", c.CameraDevice)
	}
	return nil
}

// DetectParams extracts the detector sensitivity settings.
func (c Config) DetectParams() types.DetectParams {
	return types.DetectParams{
		ScaleFactor:  c.ScaleFactor,
		MinNeighbors: c.MinNeighbors,
		MinSize:      c.MinFaceSize,
		MinQuality:   c.MinQuality,
	}
}

// Timeout returns the parsed worker timeout. 0 (the default, or an unparsable value)
// means no timeout.
func (c Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.WorkerTimeout)
	return d
}
