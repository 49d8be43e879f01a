package models

import (
	"encoding/json"
	"time"
)

// StepStatus is the lifecycle state of a single pipeline step
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepInfo is one named unit of work within an update or rollback run.
// The full list is serialized into UpdateLog.Steps after every transition
// so a polling reader always sees a consistent snapshot.
type StepInfo struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunStatus is the overall state of an update/rollback run
type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunSuccess    RunStatus = "SUCCESS"
	RunFailed     RunStatus = "FAILED"
)

// UpdateLog is the persisted audit record of one update or rollback run
type UpdateLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"size:20;not null;default:update;index" json:"kind"` // update, rollback
	Version    string    `gorm:"size:50" json:"version"`
	CommitHash string    `gorm:"size:64" json:"commit_hash"`
	PrevHash   string    `gorm:"size:64" json:"prev_hash"`
	Branch     string    `gorm:"size:100" json:"branch"`
	Status     RunStatus `gorm:"size:20;not null;index" json:"status"`

	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Duration    *int       `json:"duration"` // seconds

	// JSON snapshot of []StepInfo, rewritten after each step transition
	Steps json.RawMessage `gorm:"type:jsonb" json:"steps"`

	// Error text on failure. Rollback runs carry a "backup:<id>" provenance
	// note here until a real failure overwrites it.
	Error string `gorm:"size:1000" json:"error,omitempty"`

	TriggeredBy string `gorm:"size:100" json:"triggered_by"`
}

func (UpdateLog) TableName() string {
	return "update_logs"
}

// Backup is the persisted record of one point-in-time snapshot. The row
// outlives the files; callers must verify Path and DBPath still exist on
// disk before restoring. DBPath is empty for files-only backups whose
// database dump failed at creation time.
type Backup struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Path       string     `gorm:"size:500;not null" json:"path"`
	DBPath     string     `gorm:"size:500" json:"db_path"`
	Version    string     `gorm:"size:50" json:"version"`
	CommitHash string     `gorm:"size:64" json:"commit_hash"`
	SizeBytes  int64      `json:"size_bytes"`
	Note       string     `gorm:"size:500" json:"note"`
	UploadedAt *time.Time `json:"uploaded_at"` // offsite FTP upload timestamp
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (Backup) TableName() string {
	return "backups"
}
