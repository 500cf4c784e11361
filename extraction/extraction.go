// Package extraction turns raw PDF text into structured audit report data
// using an AI provider. Unlike classification, extraction failures are real
// errors: a report without extracted data cannot be persisted.
package extraction

import (
	"context"
	"fmt"
	"strings"
)

// maxExtractionChars bounds how much report text is sent to the model
const maxExtractionChars = 80000

// ReportData is the structured output of one extraction run
type ReportData struct {
	ReportTitle               string   `json:"report_title"`
	AuditOrganization         string   `json:"audit_organization"`
	PublicationYear           int      `json:"publication_year"`
	PublicationMonth          int      `json:"publication_month"`
	PublicationDay            *int     `json:"publication_day,omitempty"`
	Objectives                []string `json:"objectives"`
	Findings                  []string `json:"findings"`
	Recommendations           []string `json:"recommendations"`
	OverallConclusion         *string  `json:"overall_conclusion,omitempty"`
	LLMInsight                string   `json:"llm_insight"`
	PotentialObjectiveSummary *string  `json:"potential_objective_summary,omitempty"`
	OriginalReportSourceURL   *string  `json:"original_report_source_url,omitempty"`
	State                     string   `json:"state"`
	AuditScope                string   `json:"audit_scope"`
	ExtractedKeywords         []string `json:"extracted_keywords"`
}

// ExtractionLog records the accounting side of one extraction run
type ExtractionLog struct {
	ModelName        string
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	InputCost        float64
	OutputCost       float64
	TotalCost        float64
	ProcessingTimeMs int
	ExtractionStatus string
	ErrorDetails     *string
}

// Extractor is implemented by each AI provider backend
type Extractor interface {
	// ExtractReportData parses structured audit data out of pdfText. The
	// ExtractionLog is returned even when the extraction itself fails, so
	// failed runs still get accounted for.
	ExtractReportData(ctx context.Context, pdfText string) (*ReportData, *ExtractionLog, error)

	// ProviderName identifies the backend ("openai", "gemini")
	ProviderName() string
}

// New builds the extractor for the named provider. An empty provider
// defaults to OpenAI.
func New(provider string) (Extractor, error) {
	switch strings.ToLower(provider) {
	case "", "openai":
		return NewOpenAIExtractor("")
	case "gemini":
		return NewGeminiExtractor("")
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (supported: openai, gemini)", provider)
	}
}

// truncateText bounds the text sent to the model
func truncateText(text string) string {
	if len(text) > maxExtractionChars {
		return text[:maxExtractionChars]
	}
	return text
}

// applyDefaults fills required fields the model left blank so a mostly-good
// extraction is not lost over a missing scalar
func applyDefaults(data *ReportData) {
	if data.State == "" {
		data.State = "US"
	}
	if data.AuditScope == "" {
		data.AuditScope = "Audit scope not specified in document"
	}
}

const extractionSystemPrompt = `You are an AI assistant specialized in extracting structured information from Medicaid audit reports.
Your task is to extract specific data points from the provided report text and format them according to the specified schema.
Focus on accuracy and be as detailed as possible. If some information is not present in the text, leave those fields empty or null.

Always generate a potential_objective_summary that builds on the objectives of the audit for future audits in a concise paragraph.`

// extractionUserPrompt wraps the (already truncated) report text
func extractionUserPrompt(pdfText string) string {
	return fmt.Sprintf(`Please extract structured data from the following Medicaid audit report text.
For keywords, identify 5-10 relevant terms that best represent the report content.

Respond with a single JSON object using these fields:
- report_title: exact full report title in Title Case; no quotes, abbreviations, report numbers or surrounding labels
- audit_organization: full legal name of the auditing organization, no abbreviations or acronyms
- publication_year: 4-digit year the report was published
- publication_month: month the report was published (1-12)
- publication_day: day the report was published (1-31), or null if not available
- objectives: list of distinct audit objective texts, no numbering or labels
- findings: list of distinct audit finding texts, no numbering or headers
- recommendations: list of distinct audit recommendation texts, no numbering or headers
- overall_conclusion: the overall conclusion of the audit report, or null
- llm_insight: an AI-generated summary/insight about the report
- potential_objective_summary: an AI-generated audit objective building on this report's findings for future Medicaid audits
- original_report_source_url: URL to the original report if mentioned, or null
- state: US state code of the publishing agency (e.g. "NY", "CA"); use "US" for federal agencies and nationwide reports
- audit_scope: the scope of the audit, including only the time period
- extracted_keywords: relevant keywords extracted from the report content

Here's the report text:
%s

If the report text is cut off, please extract as much information as possible from the provided text.`, pdfText)
}
