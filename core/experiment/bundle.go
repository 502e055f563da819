package experiment

import (
	"errors"
	"fmt"
	"time"

	"flow-trainer/core/models"
	"flow-trainer/storage"

	"github.com/google/uuid"
)

// BundleVersion is the artifact format written by this package
const BundleVersion = 1

// ErrUnsupportedBundle is returned when an artifact has an unknown format version
var ErrUnsupportedBundle = errors.New("unsupported bundle version")

// bundle is the on-disk artifact: zlib-compressed JSON
type bundle struct {
	Version    int                    `json:"version"`
	Options    models.TrainingOptions `json:"options"`
	Metadata   metadataRecord         `json:"metadata"`
	ModelState models.ModelState      `json:"model_state"`
}

type metadataRecord struct {
	ID          uuid.UUID  `json:"id"`
	CommandLine string     `json:"command_line"`
	Revision    string     `json:"revision"`
	DataPath    string     `json:"data_path,omitempty"`
	OutputDir   string     `json:"output_dir,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SavedAt     *time.Time `json:"saved_at,omitempty"`
}

func writeBundle(path string, m *RunMetadata, state models.ModelState) error {
	b := bundle{
		Version: BundleVersion,
		Options: m.options,
		Metadata: metadataRecord{
			ID:          m.id,
			CommandLine: m.commandLine,
			Revision:    m.revision,
			DataPath:    m.dataPath,
			OutputDir:   m.outputDir,
			FileName:    m.fileName,
			CreatedAt:   m.createdAt,
			SavedAt:     m.savedAt,
		},
		ModelState: state,
	}
	return storage.WriteCompressedJSON(path, b)
}

func readBundle(path string) (*RunMetadata, models.ModelState, error) {
	var b bundle
	if err := storage.ReadCompressedJSON(path, &b); err != nil {
		return nil, nil, err
	}
	if b.Version != BundleVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedBundle, b.Version)
	}

	m := &RunMetadata{
		id:          b.Metadata.ID,
		commandLine: b.Metadata.CommandLine,
		options:     b.Options,
		revision:    b.Metadata.Revision,
		dataPath:    b.Metadata.DataPath,
		outputDir:   b.Metadata.OutputDir,
		fileName:    b.Metadata.FileName,
		createdAt:   b.Metadata.CreatedAt,
		savedAt:     b.Metadata.SavedAt,
		now:         time.Now,
	}
	return m, b.ModelState, nil
}
