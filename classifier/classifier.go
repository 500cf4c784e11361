// Package classifier decides whether a discovered document is a Medicaid
// audit report. Classification failures never escape this package: every
// path degrades to a Classification with Success=false.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
)

// Document is the summary-level input to classification
type Document struct {
	Title   string
	Snippet string
	URL     string
}

// Classifier is implemented by each AI provider backend
type Classifier interface {
	// ClassifyDocument judges a single document. It never returns an
	// error; failures come back as Classification{Success: false}.
	ClassifyDocument(ctx context.Context, doc Document) models.Classification

	// ProviderName identifies the backend ("OpenAI", "Gemini")
	ProviderName() string

	// Available reports whether the backend has usable credentials
	Available() bool
}

const (
	// DefaultAttempts is how many times a single classification call is
	// tried before degrading to a failure result
	DefaultAttempts = 2

	// DefaultBatchSize is how many documents are classified between
	// rate-limit pauses
	DefaultBatchSize = 5

	// DefaultBatchDelay is the pause between batches, a courtesy to the
	// provider's rate limiter
	DefaultBatchDelay = 500 * time.Millisecond
)

var ErrNoProviderAvailable = errors.New("no classifier provider available: set OPENAI_API_KEY or GOOGLE_API_KEY")

// NewWithFallback returns the preferred provider if its credentials are
// present, otherwise the other one. The active provider is logged so
// operators can tell which backend produced a run's classifications.
func NewWithFallback(ctx context.Context, preferred string) (Classifier, error) {
	openai := NewOpenAIClassifier("")
	gemini := NewGeminiClassifier(ctx, "")

	var primary, fallback Classifier
	if strings.EqualFold(preferred, "gemini") {
		primary, fallback = gemini, openai
	} else {
		primary, fallback = openai, gemini
	}

	if primary.Available() {
		log.Printf("Classifier provider: %s", primary.ProviderName())
		return primary, nil
	}
	if fallback.Available() {
		log.Printf("Classifier provider %s unavailable, falling back to %s",
			primary.ProviderName(), fallback.ProviderName())
		return fallback, nil
	}

	return nil, ErrNoProviderAvailable
}

// ClassifyWithRetry retries a classification up to attempts times and
// returns the last failure result if none succeeds
func ClassifyWithRetry(ctx context.Context, c Classifier, doc Document, attempts int) models.Classification {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var result models.Classification
	for attempt := 0; attempt < attempts; attempt++ {
		result = c.ClassifyDocument(ctx, doc)
		if result.Success {
			return result
		}
		log.Printf("Classification attempt %d/%d failed for %q: %s",
			attempt+1, attempts, doc.Title, result.Error)
	}
	return result
}

// ClassifyBatch classifies documents in fixed-size batches with an
// inter-batch delay. One document's failure degrades that document only;
// the returned slice always has one result per input.
func ClassifyBatch(ctx context.Context, c Classifier, docs []Document) []models.Classification {
	results := make([]models.Classification, 0, len(docs))

	log.Printf("Classifying %d results with %s", len(docs), c.ProviderName())

	for i, doc := range docs {
		if i > 0 && i%DefaultBatchSize == 0 {
			time.Sleep(DefaultBatchDelay)
		}
		log.Printf("  Analyzing [%d/%d]: %.50s", i+1, len(docs), doc.Title)
		results = append(results, ClassifyWithRetry(ctx, c, doc, DefaultAttempts))
	}

	return results
}

// classificationPrompt is shared by both providers
func classificationPrompt(doc Document) string {
	snippet := doc.Snippet
	if snippet == "" {
		snippet = "No snippet available"
	}
	url := doc.URL
	if url == "" {
		url = "No URL available"
	}

	return fmt.Sprintf(`Analyze this document and determine if it's a legitimate Medicaid audit report.

Document Information:
- Title: %s
- Snippet: %s
- URL: %s

Classification Criteria:
- A Medicaid audit report contains findings, recommendations, or analysis of Medicaid program operations
- It should NOT be: manuals, guides, forms, policies, newsletters, or general healthcare documents
- Look for audit-specific language like "findings", "recommendations", "deficiencies", "compliance"

Respond with JSON in this exact format:
{
    "is_medicaid_audit": true or false,
    "confidence": 0.0 to 1.0,
    "document_type": "audit_report" or "manual" or "guide" or "form" or "policy" or "other",
    "reasoning": "Brief explanation of your determination"
}`, doc.Title, snippet, url)
}

// parseClassification defensively extracts the JSON object from a model
// response, tolerating prose wrapped around it
func parseClassification(text, provider string) models.Classification {
	text = strings.TrimSpace(text)
	if text == "" {
		return failedClassification(provider, "empty response")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return failedClassification(provider, fmt.Sprintf("no JSON found in response: %.100s", text))
	}

	var parsed struct {
		IsMedicaidAudit bool    `json:"is_medicaid_audit"`
		Confidence      float64 `json:"confidence"`
		DocumentType    string  `json:"document_type"`
		Reasoning       string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return failedClassification(provider, "JSON decode error: "+err.Error())
	}

	documentType := parsed.DocumentType
	if documentType == "" {
		documentType = "unknown"
	}
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	return models.Classification{
		IsMedicaidAudit: parsed.IsMedicaidAudit,
		Confidence:      parsed.Confidence,
		DocumentType:    documentType,
		Reasoning:       reasoning,
		Success:         true,
		Provider:        provider,
	}
}

// failedClassification is the uniform degraded result: never an audit,
// zero confidence, error preserved for the operator
func failedClassification(provider, errMsg string) models.Classification {
	return models.Classification{
		IsMedicaidAudit: false,
		Confidence:      0.0,
		DocumentType:    "unknown",
		Reasoning:       "Classification failed: " + errMsg,
		Success:         false,
		Error:           errMsg,
		Provider:        provider,
	}
}
