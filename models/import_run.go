package models

import (
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ImportRun records the progress of one pipeline run. Remote resources
// created before a failure stay listed here for manual cleanup.
type ImportRun struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `json:"name"`
	FileNames string `json:"file_names" gorm:"type:text"`
	Status    string `json:"status" gorm:"index;not null;default:'running'"`

	Progress     int    `json:"progress"`
	ProgressText string `json:"progress_text"`
	Error        string `json:"error,omitempty" gorm:"type:text"`

	StudysetID   string `json:"studyset_id,omitempty"`
	AnnotationID string `json:"annotation_id,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	// Summary is the JSON-encoded per-file import summary.
	Summary string `json:"summary,omitempty" gorm:"type:text"`
}

// TableName returns the explicit table name for GORM.
func (ImportRun) TableName() string {
	return "import_runs"
}
