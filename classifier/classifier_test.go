package classifier

import (
	"context"
	"testing"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassificationValidJSON(t *testing.T) {
	text := `{"is_medicaid_audit": true, "confidence": 0.92, "document_type": "audit_report", "reasoning": "Contains findings and recommendations"}`

	result := parseClassification(text, "OpenAI")

	assert.True(t, result.Success)
	assert.True(t, result.IsMedicaidAudit)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "audit_report", result.DocumentType)
	assert.Equal(t, "OpenAI", result.Provider)
	assert.Empty(t, result.Error)
}

func TestParseClassificationJSONWrappedInProse(t *testing.T) {
	text := "Sure! Here is the classification:\n```json\n" +
		`{"is_medicaid_audit": false, "confidence": 0.8, "document_type": "manual", "reasoning": "Provider manual"}` +
		"\n```\nLet me know if you need anything else."

	result := parseClassification(text, "Gemini")

	assert.True(t, result.Success)
	assert.False(t, result.IsMedicaidAudit)
	assert.Equal(t, "manual", result.DocumentType)
}

func TestParseClassificationEmptyResponse(t *testing.T) {
	result := parseClassification("", "OpenAI")

	assert.False(t, result.Success)
	assert.False(t, result.IsMedicaidAudit)
	assert.Equal(t, 0.0, result.Confidence)
	assert.NotEmpty(t, result.Error)
}

func TestParseClassificationNoJSON(t *testing.T) {
	result := parseClassification("I cannot classify this document.", "OpenAI")

	assert.False(t, result.Success)
	assert.False(t, result.IsMedicaidAudit)
}

func TestParseClassificationMalformedJSON(t *testing.T) {
	result := parseClassification(`{"is_medicaid_audit": tru`, "OpenAI")

	assert.False(t, result.Success)
}

func TestParseClassificationFillsDefaults(t *testing.T) {
	result := parseClassification(`{"is_medicaid_audit": true, "confidence": 0.5}`, "OpenAI")

	assert.True(t, result.Success)
	assert.Equal(t, "unknown", result.DocumentType)
	assert.Equal(t, "No reasoning provided", result.Reasoning)
}

// flakyClassifier fails a set number of times before succeeding
type flakyClassifier struct {
	failures int
	calls    int
}

func (c *flakyClassifier) ClassifyDocument(ctx context.Context, doc Document) models.Classification {
	c.calls++
	if c.calls <= c.failures {
		return failedClassification("Fake", "transient error")
	}
	return models.Classification{
		IsMedicaidAudit: true,
		Confidence:      0.9,
		DocumentType:    "audit_report",
		Reasoning:       "ok",
		Success:         true,
		Provider:        "Fake",
	}
}

func (c *flakyClassifier) ProviderName() string { return "Fake" }
func (c *flakyClassifier) Available() bool      { return true }

func TestClassifyWithRetryRecoversFromTransientFailure(t *testing.T) {
	fake := &flakyClassifier{failures: 1}

	result := ClassifyWithRetry(context.Background(), fake, Document{Title: "t"}, 2)

	assert.True(t, result.Success)
	assert.Equal(t, 2, fake.calls)
}

func TestClassifyWithRetryReturnsLastFailure(t *testing.T) {
	fake := &flakyClassifier{failures: 10}

	result := ClassifyWithRetry(context.Background(), fake, Document{Title: "t"}, 2)

	assert.False(t, result.Success)
	assert.False(t, result.IsMedicaidAudit)
	assert.Equal(t, 2, fake.calls)
}

func TestClassifyBatchOneResultPerInput(t *testing.T) {
	fake := &flakyClassifier{}
	docs := []Document{
		{Title: "a"}, {Title: "b"}, {Title: "c"},
	}

	results := ClassifyBatch(context.Background(), fake, docs)

	assert.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func TestClassifyBatchEmptyInput(t *testing.T) {
	fake := &flakyClassifier{}

	results := ClassifyBatch(context.Background(), fake, nil)

	assert.Empty(t, results)
}

func TestFallbackSelectsOtherProviderWhenPreferredUnavailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_API_KEY", "")

	c, err := NewWithFallback(context.Background(), "openai")

	require.NoError(t, err)
	assert.Equal(t, "Gemini", c.ProviderName())
}

func TestFallbackHonorsPreferredProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "test-key")

	c, err := NewWithFallback(context.Background(), "gemini")
	require.NoError(t, err)
	assert.Equal(t, "Gemini", c.ProviderName())

	c, err = NewWithFallback(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", c.ProviderName())
}

func TestFallbackErrorsWithoutAnyCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := NewWithFallback(context.Background(), "openai")

	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestClassifyBatchWithoutCredentialsDegradesEachDocument(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	c := NewOpenAIClassifier("")
	docs := []Document{{Title: "a"}, {Title: "b"}, {Title: "c"}}

	results := ClassifyBatch(context.Background(), c, docs)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.False(t, r.IsMedicaidAudit)
		assert.NotEmpty(t, r.Error)
	}
}

func TestFailedClassificationShape(t *testing.T) {
	result := failedClassification("OpenAI", "boom")

	assert.False(t, result.Success)
	assert.False(t, result.IsMedicaidAudit)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, "unknown", result.DocumentType)
	assert.Equal(t, "boom", result.Error)
	assert.Equal(t, "OpenAI", result.Provider)
}
