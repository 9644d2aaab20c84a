package core

import (
	"fmt"
	"path/filepath"
	"time"
)

// ArtifactType categorizes the kind of output a phase runner collects from
// an agent's worktree.
type ArtifactType string

const (
	ArtifactTypeDesign        ArtifactType = "design"
	ArtifactTypePlan          ArtifactType = "plan"
	ArtifactTypeResearch      ArtifactType = "research"
	ArtifactTypeCodeTask      ArtifactType = "code_task"
	ArtifactTypeCode          ArtifactType = "code"
	ArtifactTypeDocumentation ArtifactType = "documentation"
	ArtifactTypeLog           ArtifactType = "log"
)

// Artifact represents an output produced during a phase: a plan document, a
// generated *.code-task.md file, a log capture, and so on.
type Artifact struct {
	ID        string
	Type      ArtifactType
	TaskID    TaskID
	Phase     Phase
	Path      string // file path if persisted in a worktree
	Content   string // raw content if read into memory
	Metadata  map[string]string
	Size      int64
	Checksum  string
	CreatedAt time.Time
}

// NewArtifact creates a new artifact.
func NewArtifact(id string, artifactType ArtifactType, taskID TaskID) *Artifact {
	return &Artifact{
		ID:        id,
		Type:      artifactType,
		TaskID:    taskID,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// WithContent sets the artifact content.
func (a *Artifact) WithContent(content string) *Artifact {
	a.Content = content
	a.Size = int64(len(content))
	return a
}

// WithPath sets the artifact file path.
func (a *Artifact) WithPath(path string) *Artifact {
	a.Path = path
	return a
}

// WithPhase sets the artifact phase.
func (a *Artifact) WithPhase(phase Phase) *Artifact {
	a.Phase = phase
	return a
}

// WithMetadata adds metadata to the artifact.
func (a *Artifact) WithMetadata(key, value string) *Artifact {
	a.Metadata[key] = value
	return a
}

// FileName returns the base name if path is set.
func (a *Artifact) FileName() string {
	if a.Path == "" {
		return ""
	}
	return filepath.Base(a.Path)
}

// IsFile reports whether the artifact is backed by a file on disk.
func (a *Artifact) IsFile() bool {
	return a.Path != ""
}

// Validate checks artifact invariants.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return ErrValidation("ARTIFACT_ID_REQUIRED", "artifact ID cannot be empty")
	}
	if !ValidArtifactType(a.Type) {
		return ErrValidation("INVALID_ARTIFACT_TYPE", fmt.Sprintf("invalid artifact type: %s", a.Type))
	}
	if a.Content == "" && a.Path == "" {
		return ErrValidation("ARTIFACT_EMPTY", "artifact must have content or path")
	}
	return nil
}

// ValidArtifactType checks if an artifact type is valid.
func ValidArtifactType(t ArtifactType) bool {
	for _, candidate := range AllArtifactTypes() {
		if candidate == t {
			return true
		}
	}
	return false
}

// AllArtifactTypes returns all valid artifact types.
func AllArtifactTypes() []ArtifactType {
	return []ArtifactType{
		ArtifactTypeDesign,
		ArtifactTypePlan,
		ArtifactTypeResearch,
		ArtifactTypeCodeTask,
		ArtifactTypeCode,
		ArtifactTypeDocumentation,
		ArtifactTypeLog,
	}
}
