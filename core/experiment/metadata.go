package experiment

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flow-trainer/core/models"
	"flow-trainer/logging"

	"github.com/google/uuid"
)

// ArtifactExt is the extension of persisted model bundles
const ArtifactExt = ".pth"

const (
	pathTimestampLayout     = "2006-01-02_15-04-05"
	describeTimestampLayout = "2006/01/02 15:04:05"
)

// Environment carries the process-level inputs of run metadata
type Environment struct {
	// OutputRoot is the directory relative save_model paths are resolved against
	OutputRoot string
	// Revision defaults to GitRevision
	Revision RevisionFunc
	// Now defaults to time.Now
	Now func() time.Time
}

// RunMetadata records the provenance of one training run and owns the
// location its trained artifact is written to.
//
// The artifact path is fixed when the metadata is created; every Persist
// overwrites the same file and only updates the save timestamp.
type RunMetadata struct {
	id          uuid.UUID
	commandLine string
	options     models.TrainingOptions
	revision    string
	dataPath    string
	outputDir   string
	fileName    string
	createdAt   time.Time
	savedAt     *time.Time

	now func() time.Time
}

// New creates the metadata of a fresh run.
// A missing save_model option is not an error: saving becomes a no-op.
func New(ctx context.Context, opts models.TrainingOptions, commandLine string, env Environment) (*RunMetadata, error) {
	now := env.Now
	if now == nil {
		now = time.Now
	}

	m := &RunMetadata{
		id:          uuid.New(),
		commandLine: commandLine,
		options:     opts,
		revision:    lookupRevision(ctx, env.Revision),
		createdAt:   now().UTC(),
		now:         now,
	}

	if opts.LoadData != "" {
		abs, err := filepath.Abs(opts.LoadData)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data path: %w", err)
		}
		m.dataPath = abs
	}

	if opts.SaveModel != "" {
		dir := opts.SaveModel
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(env.OutputRoot, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		m.outputDir = dir
		m.fileName = DerivePath(filepath.Base(dir), m.createdAt, m.id)
	}

	return m, nil
}

// DerivePath composes the artifact file name of a run:
// <baseDir>_<yyyy-mm-dd_hh-mm-ss>_<runID as 32 hex digits>.
// The run id keeps concurrent runs with the same directory and timestamp apart.
func DerivePath(baseDir string, timestamp time.Time, runID uuid.UUID) string {
	return baseDir + "_" + timestamp.Format(pathTimestampLayout) + "_" + hex.EncodeToString(runID[:])
}

// Persist writes the bundle {options, state, metadata} to the run's artifact path.
// Without an output directory it does nothing and returns nil.
func (m *RunMetadata) Persist(state models.ModelState) error {
	if m.outputDir == "" {
		return nil
	}

	previous := m.savedAt
	savedAt := m.now().UTC()
	m.savedAt = &savedAt

	if err := writeBundle(m.Path(), m, state); err != nil {
		m.savedAt = previous
		return fmt.Errorf("failed to persist run %s: %w", m.IDHex(), err)
	}

	logging.Debug("Persisted model", logging.Experiment, "path", m.Path(), "saved_at", savedAt)
	return nil
}

// Load reads a bundle written by Persist
func Load(path string) (*RunMetadata, models.ModelState, error) {
	return readBundle(path)
}

// Describe returns a human-readable summary of the run.
// The save timestamp is shown in the local time zone.
func (m *RunMetadata) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Trained model %s\n", orUnavailable(m.fileName))
	if m.savedAt != nil {
		fmt.Fprintf(&b, "    Timestamp: %s\n", m.savedAt.Local().Format(describeTimestampLayout))
	} else {
		fmt.Fprintf(&b, "    Timestamp: %s\n", Unavailable)
	}
	fmt.Fprintf(&b, "    Git hash: %s\n", orUnavailable(m.revision))
	fmt.Fprintf(&b, "    Command line: %s\n", m.commandLine)
	fmt.Fprintf(&b, "    Data: %s\n", orUnavailable(m.dataPath))
	return b.String()
}

// ID returns the run id
func (m *RunMetadata) ID() uuid.UUID { return m.id }

// IDHex returns the run id as 32 lowercase hex digits
func (m *RunMetadata) IDHex() string { return hex.EncodeToString(m.id[:]) }

// CommandLine returns the command line that started the run
func (m *RunMetadata) CommandLine() string { return m.commandLine }

// Options returns the training options of the run
func (m *RunMetadata) Options() models.TrainingOptions { return m.options }

// Revision returns the source revision, or Unavailable
func (m *RunMetadata) Revision() string { return m.revision }

// DataPath returns the absolute path of the loaded dataset, empty when generated
func (m *RunMetadata) DataPath() string { return m.dataPath }

// OutputDir returns the directory the artifact is written to, empty when saving is disabled
func (m *RunMetadata) OutputDir() string { return m.outputDir }

// FileName returns the artifact file name without extension
func (m *RunMetadata) FileName() string { return m.fileName }

// CreatedAt returns the creation time of the run in UTC
func (m *RunMetadata) CreatedAt() time.Time { return m.createdAt }

// SavedAt returns the time of the most recent Persist, nil if never persisted
func (m *RunMetadata) SavedAt() *time.Time {
	if m.savedAt == nil {
		return nil
	}
	t := *m.savedAt
	return &t
}

// Path returns the artifact path, empty when saving is disabled
func (m *RunMetadata) Path() string {
	if m.outputDir == "" {
		return ""
	}
	return filepath.Join(m.outputDir, m.fileName+ArtifactExt)
}

// SavingEnabled reports whether an output directory was configured
func (m *RunMetadata) SavingEnabled() bool {
	return m.outputDir != ""
}

// Record converts the metadata into a registry record
func (m *RunMetadata) Record() *models.Run {
	return &models.Run{
		ID:          m.id.String(),
		CommandLine: m.commandLine,
		Revision:    m.revision,
		DataPath:    m.dataPath,
		OutputDir:   m.outputDir,
		FileName:    m.fileName,
		Options:     m.options,
		Status:      models.RunStatusRunning,
		CreatedAt:   m.createdAt,
	}
}

func orUnavailable(s string) string {
	if s == "" {
		return Unavailable
	}
	return s
}
