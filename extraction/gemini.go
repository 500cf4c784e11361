package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiExtractionModel = "gemini-2.5-flash"

	// Gemini 2.5 Flash pricing: $0.075 input / $0.30 output per 1M tokens
	geminiInputCostPerToken  = 0.000000075
	geminiOutputCostPerToken = 0.0000003
)

// GeminiExtractor extracts report data through the Gemini API with
// JSON-mode output
type GeminiExtractor struct {
	modelName string
	apiKey    string
}

// NewGeminiExtractor builds a Gemini-backed extractor. Extraction is a hard
// dependency of processing, so a missing key is an error here.
func NewGeminiExtractor(model string) (*GeminiExtractor, error) {
	if model == "" {
		model = defaultGeminiExtractionModel
	}

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GOOGLE_GEMINI_API_KEY not found in environment")
	}

	return &GeminiExtractor{modelName: model, apiKey: apiKey}, nil
}

// ProviderName identifies this backend
func (e *GeminiExtractor) ProviderName() string {
	return "gemini"
}

// ExtractReportData runs one extraction. The returned ExtractionLog is
// always non-nil; on failure it carries a FAILURE status and the error text.
func (e *GeminiExtractor) ExtractReportData(ctx context.Context, pdfText string) (*ReportData, *ExtractionLog, error) {
	start := time.Now()
	pdfText = truncateText(pdfText)

	data, usage, err := e.call(ctx, pdfText)
	elapsed := int(time.Since(start).Milliseconds())

	if err != nil {
		errMsg := err.Error()
		log := &ExtractionLog{
			ModelName:        e.modelName,
			ProcessingTimeMs: elapsed,
			ExtractionStatus: "FAILURE",
			ErrorDetails:     &errMsg,
		}
		return nil, log, fmt.Errorf("failed to extract data with Gemini: %w", err)
	}

	applyDefaults(data)

	inputTokens := usage.input
	outputTokens := usage.output
	if inputTokens == 0 {
		inputTokens = len(pdfText) / 4
	}
	if outputTokens == 0 {
		outputTokens = 1000
	}
	inputCost := float64(inputTokens) * geminiInputCostPerToken
	outputCost := float64(outputTokens) * geminiOutputCostPerToken

	log := &ExtractionLog{
		ModelName:        e.modelName,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		TotalTokens:      inputTokens + outputTokens,
		InputCost:        inputCost,
		OutputCost:       outputCost,
		TotalCost:        inputCost + outputCost,
		ProcessingTimeMs: elapsed,
		ExtractionStatus: "SUCCESS",
	}

	return data, log, nil
}

type geminiUsage struct {
	input  int
	output int
}

func (e *GeminiExtractor) call(ctx context.Context, pdfText string) (*ReportData, geminiUsage, error) {
	var usage geminiUsage

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, usage, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(e.modelName)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractionSystemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(extractionUserPrompt(pdfText)))
	if err != nil {
		return nil, usage, fmt.Errorf("request failed: %w", err)
	}

	if resp.UsageMetadata != nil {
		usage.input = int(resp.UsageMetadata.PromptTokenCount)
		usage.output = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, usage, errors.New("empty response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return nil, usage, errors.New("no text in response")
	}

	var data ReportData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, usage, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}

	return &data, usage, nil
}
