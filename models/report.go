package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus represents the publication status of a report
type ReportStatus string

const (
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusPublished  ReportStatus = "published"
)

// Report represents a fully extracted Medicaid audit report. FileHash is the
// content-addressing key: unique, enforced at the database level, and the
// authoritative deduplication axis.
type Report struct {
	ID                        uuid.UUID    `json:"id"`
	ReportTitle               string       `json:"report_title"`
	AuditOrganization         string       `json:"audit_organization"`
	PublicationYear           int          `json:"publication_year"`
	PublicationMonth          int          `json:"publication_month"`
	PublicationDay            *int         `json:"publication_day,omitempty"`
	OverallConclusion         *string      `json:"overall_conclusion,omitempty"`
	LLMInsight                *string      `json:"llm_insight,omitempty"`
	PotentialObjectiveSummary *string      `json:"potential_objective_summary,omitempty"`
	OriginalReportSourceURL   *string      `json:"original_report_source_url,omitempty"`
	State                     string       `json:"state"`
	AuditScope                string       `json:"audit_scope"`
	OriginalFilename          string       `json:"original_filename"`
	FileHash                  string       `json:"file_hash"`
	PDFStoragePath            string       `json:"pdf_storage_path"`
	FileSizeBytes             int64        `json:"file_size_bytes"`
	Featured                  bool         `json:"featured"`
	Status                    ReportStatus `json:"status"`
	CreatedAt                 time.Time    `json:"created_at"`
	UpdatedAt                 time.Time    `json:"updated_at"`

	// Child collections, loaded on demand
	Objectives      []Objective      `json:"objectives,omitempty"`
	Findings        []Finding        `json:"findings,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Keywords        []Keyword        `json:"keywords,omitempty"`
}

// Objective is a single audit objective extracted from a report
type Objective struct {
	ID            uuid.UUID `json:"id"`
	ReportID      uuid.UUID `json:"report_id"`
	ObjectiveText string    `json:"objective_text"`
}

// Finding is a single audit finding, optionally with a dollar impact
type Finding struct {
	ID              uuid.UUID `json:"id"`
	ReportID        uuid.UUID `json:"report_id"`
	FindingText     string    `json:"finding_text"`
	FinancialImpact *float64  `json:"financial_impact,omitempty"`
}

// Recommendation is a single audit recommendation
type Recommendation struct {
	ID                 uuid.UUID  `json:"id"`
	ReportID           uuid.UUID  `json:"report_id"`
	RecommendationText string     `json:"recommendation_text"`
	RelatedFindingID   *uuid.UUID `json:"related_finding_id,omitempty"`
}

// Keyword is deduplicated globally by its text and associated to reports
// through a many-to-many join table
type Keyword struct {
	ID          uuid.UUID `json:"id"`
	KeywordText string    `json:"keyword_text"`
}

// AIProcessingLog records token usage, cost and timing for one extraction run
type AIProcessingLog struct {
	ID               uuid.UUID `json:"id"`
	ReportID         uuid.UUID `json:"report_id"`
	ModelName        string    `json:"model_name"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	InputCost        float64   `json:"input_cost"`
	OutputCost       float64   `json:"output_cost"`
	TotalCost        float64   `json:"total_cost"`
	ProcessingTimeMs int       `json:"processing_time_ms"`
	ExtractionStatus string    `json:"extraction_status"`
	ErrorDetails     *string   `json:"error_details,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
