package domain

import (
	"fmt"
	"time"
)

// PrivacyLevel controls who may see a document and where its text may flow.
type PrivacyLevel string

const (
	PrivacyShared     PrivacyLevel = "shared"
	PrivacyPrivate    PrivacyLevel = "private"
	PrivacyPrivileged PrivacyLevel = "privileged"
)

// ProcessingStatus is the pipeline state machine for a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusFlagged    ProcessingStatus = "flagged_for_review"
)

// IsTerminal reports whether only an explicit reprocess can restart work.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusFlagged:
		return true
	}
	return false
}

// SourceChannel records how a document entered the archive.
type SourceChannel string

const (
	SourceWebUpload        SourceChannel = "web_upload"
	SourceEmailShared      SourceChannel = "email_shared"
	SourceEmailPrivate     SourceChannel = "email_private"
	SourceTranscriptImport SourceChannel = "transcript_import"
)

// Document is the unit of work for the processing pipeline.
type Document struct {
	ID               string
	UploadedBy       string // empty when the sender could not be matched
	Title            string
	OriginalFilename string
	FileKey          string // object storage key for the raw file
	FileSizeBytes    int64
	MimeType         string
	PrivacyLevel     PrivacyLevel
	DocType          string
	DocDate          *time.Time
	SourceChannel    SourceChannel
	ProcessingStatus ProcessingStatus
	ProcessingError  string // empty means no error
	ExtractedText    string
	ScrubbedText     string
	AISummary        string
	AIConfidence     *float64
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// ValidateDocument validates a Document instance before persistence.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.FileKey == "" && d.ExtractedText == "" {
		return fmt.Errorf("document requires either a FileKey or pre-filled ExtractedText")
	}

	if !IsValidPrivacyLevel(d.PrivacyLevel) {
		return fmt.Errorf("document PrivacyLevel is invalid: %s", d.PrivacyLevel)
	}

	if !IsValidProcessingStatus(d.ProcessingStatus) {
		return fmt.Errorf("document ProcessingStatus is invalid: %s", d.ProcessingStatus)
	}

	if !IsValidSourceChannel(d.SourceChannel) {
		return fmt.Errorf("document SourceChannel is invalid: %s", d.SourceChannel)
	}

	return nil
}

// IsValidPrivacyLevel checks whether p is a known privacy level.
func IsValidPrivacyLevel(p PrivacyLevel) bool {
	switch p {
	case PrivacyShared, PrivacyPrivate, PrivacyPrivileged:
		return true
	}
	return false
}

// IsValidProcessingStatus checks whether s is a known processing status.
func IsValidProcessingStatus(s ProcessingStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusFlagged:
		return true
	}
	return false
}

// IsValidSourceChannel checks whether c is a known source channel.
func IsValidSourceChannel(c SourceChannel) bool {
	switch c {
	case SourceWebUpload, SourceEmailShared, SourceEmailPrivate, SourceTranscriptImport:
		return true
	}
	return false
}
