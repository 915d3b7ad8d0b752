// -----------------------------------------------------------------------
// Log record - persisted framework log line, queryable by job or workflow
// -----------------------------------------------------------------------

package models

import "time"

// LogLevel classifies persisted log records.
type LogLevel string

// LogLevel constants
const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelError LogLevel = "ERROR"
)

// LogRecord is one append-only framework log line.
type LogRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      LogLevel  `json:"level"`
	SiteName   string    `json:"site_name,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	Message    string    `json:"message"`
}

// NewLogRecord creates a record stamped with the current time.
func NewLogRecord(level LogLevel, siteName, workflowID, jobID, message string) *LogRecord {
	return &LogRecord{
		Timestamp:  time.Now().UTC(),
		Level:      level,
		SiteName:   siteName,
		WorkflowID: workflowID,
		JobID:      jobID,
		Message:    message,
	}
}
