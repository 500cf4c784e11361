package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueStatus represents the lifecycle state of a scraping queue item
type QueueStatus string

const (
	QueueStatusPendingReview QueueStatus = "pending_review"
	QueueStatusPending       QueueStatus = "pending"
	QueueStatusDownloading   QueueStatus = "downloading"
	QueueStatusProcessing    QueueStatus = "processing"
	QueueStatusCompleted     QueueStatus = "completed"
	QueueStatusFailed        QueueStatus = "failed"
	QueueStatusDuplicate     QueueStatus = "duplicate"
	QueueStatusSkipped       QueueStatus = "skipped"
)

// MaxQueueRetries caps how many times a queue item may be attempted
const MaxQueueRetries = 3

// SourceManualUpload marks queue items that came from the upload form
// rather than web discovery
const SourceManualUpload = "manual_upload"

// ActiveQueueStatuses are the non-terminal states that block re-enqueueing
// the same URL while an item is in flight
var ActiveQueueStatuses = []QueueStatus{
	QueueStatusPendingReview,
	QueueStatusPending,
	QueueStatusDownloading,
	QueueStatusProcessing,
}

// IsTerminal reports whether the status is a final state
func (s QueueStatus) IsTerminal() bool {
	switch s {
	case QueueStatusCompleted, QueueStatusFailed, QueueStatusDuplicate, QueueStatusSkipped:
		return true
	}
	return false
}

// Classification holds the AI judgment for a discovered document
type Classification struct {
	IsMedicaidAudit bool    `json:"is_medicaid_audit"`
	Confidence      float64 `json:"confidence"`
	DocumentType    string  `json:"document_type"`
	Reasoning       string  `json:"reasoning"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	Provider        string  `json:"provider,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (c Classification) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *Classification) Scan(value interface{}) error {
	if value == nil {
		*c = Classification{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*c = Classification{}
		return nil
	}

	if len(bytes) == 0 {
		*c = Classification{}
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// SearchMetadata carries the normalized fields captured from a search result
type SearchMetadata struct {
	Author       string `json:"author,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// UploadMetadata carries the embedded payload for manually uploaded files.
// FileContent is the hex-encoded raw PDF bytes; the processor decodes it
// instead of fetching over the network.
type UploadMetadata struct {
	OriginalFilename string `json:"original_filename"`
	FileHash         string `json:"file_hash"`
	FileContent      string `json:"file_content"`
	AIProvider       string `json:"ai_provider,omitempty"`
}

// DocumentMetadata is the per-item metadata payload. Exactly one of Search or
// Upload is set depending on how the item entered the queue; Extra keeps
// provider-specific fields that have no typed home.
type DocumentMetadata struct {
	Search *SearchMetadata   `json:"search,omitempty"`
	Upload *UploadMetadata   `json:"upload,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (m DocumentMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *DocumentMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = DocumentMetadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*m = DocumentMetadata{}
		return nil
	}

	if len(bytes) == 0 {
		*m = DocumentMetadata{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// QueueItem represents a candidate document tracked from discovery (or manual
// upload) through review and processing. Items are never deleted; terminal
// rows remain as an audit trail.
type QueueItem struct {
	ID               uuid.UUID        `json:"id"`
	URL              string           `json:"url"`
	Title            string           `json:"title"`
	SourceDomain     string           `json:"source_domain"`
	DocumentMetadata DocumentMetadata `json:"document_metadata"`
	AIClassification Classification   `json:"ai_classification"`
	Status           QueueStatus      `json:"status"`
	RetryCount       int              `json:"retry_count"`
	UserOverride     bool             `json:"user_override"`
	ErrorMessage     *string          `json:"error_message,omitempty"`
	ReportID         *uuid.UUID       `json:"report_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// IsUpload reports whether the item came in through the upload form
func (q *QueueItem) IsUpload() bool {
	return q.SourceDomain == SourceManualUpload
}

// DuplicateCheck records that a queue item matched a pre-existing report
type DuplicateCheck struct {
	ID               uuid.UUID `json:"id"`
	QueueItemID      uuid.UUID `json:"queue_item_id"`
	ExistingReportID uuid.UUID `json:"existing_report_id"`
	SimilarityScore  float64   `json:"similarity_score"`
	CreatedAt        time.Time `json:"created_at"`
}
