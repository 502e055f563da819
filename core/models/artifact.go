package models

import "time"

// ArtifactType represents the type of run artifact
type ArtifactType string

const (
	ArtifactTypeCheckpoint ArtifactType = "checkpoint"
	ArtifactTypeSummary    ArtifactType = "summary"
	ArtifactTypeDataset    ArtifactType = "dataset"
)

// RunArtifact represents a file produced by a run (checkpoint, summary, dataset)
type RunArtifact struct {
	ID        int64
	RunID     string
	Type      ArtifactType
	URI       string
	CreatedAt time.Time
	MetaJSON  map[string]interface{}
}
