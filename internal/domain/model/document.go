package model

import "time"

type DocumentStatus string

const (
	DocumentStatusUploaded  DocumentStatus = "uploaded"
	DocumentStatusProcessed DocumentStatus = "processed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Document is one uploaded file inside a job's batch.
type Document struct {
	ID        string
	JobID     string
	Name      string
	FilePath  string
	FileSize  int64
	Status    DocumentStatus
	CreatedAt time.Time
}
