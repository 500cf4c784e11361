package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultOpenAIExtractionModel = "gpt-5-nano"
	openAIChatCompletionsURL     = "https://api.openai.com/v1/chat/completions"

	// gpt-5-nano pricing: $0.05 input / $0.40 output per 1M tokens
	openAIInputCostPerToken  = 0.00000005
	openAIOutputCostPerToken = 0.0000004
)

// OpenAIExtractor extracts report data through the OpenAI chat
// completions API with JSON-mode output
type OpenAIExtractor struct {
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIExtractor builds an OpenAI-backed extractor. Extraction is a
// hard dependency of processing, so a missing key is an error here.
func NewOpenAIExtractor(model string) (*OpenAIExtractor, error) {
	if model == "" {
		model = defaultOpenAIExtractionModel
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not found in environment")
	}

	return &OpenAIExtractor{
		model:  model,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
	}, nil
}

// ProviderName identifies this backend
func (e *OpenAIExtractor) ProviderName() string {
	return "openai"
}

// ExtractReportData runs one extraction. The returned ExtractionLog is
// always non-nil; on failure it carries a FAILURE status and the error text.
func (e *OpenAIExtractor) ExtractReportData(ctx context.Context, pdfText string) (*ReportData, *ExtractionLog, error) {
	start := time.Now()
	pdfText = truncateText(pdfText)

	data, err := e.call(ctx, pdfText)
	elapsed := int(time.Since(start).Milliseconds())

	if err != nil {
		errMsg := err.Error()
		log := &ExtractionLog{
			ModelName:        e.model,
			ProcessingTimeMs: elapsed,
			ExtractionStatus: "FAILURE",
			ErrorDetails:     &errMsg,
		}
		return nil, log, fmt.Errorf("failed to extract data with OpenAI: %w", err)
	}

	applyDefaults(data)

	// Token counts are estimated; the completions response does carry real
	// usage but the estimate keeps cost accounting uniform across providers
	inputTokens := len(pdfText) / 4
	outputTokens := 1000
	inputCost := float64(inputTokens) * openAIInputCostPerToken
	outputCost := float64(outputTokens) * openAIOutputCostPerToken

	log := &ExtractionLog{
		ModelName:        e.model,
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

func (e *OpenAIExtractor) call(ctx context.Context, pdfText string) (*ReportData, error) {
	reqBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": extractionUserPrompt(pdfText)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openAIChatCompletionsURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %d - %.300s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, errors.New("empty response")
	}

	var data ReportData
	if err := json.Unmarshal([]byte(apiResp.Choices[0].Message.Content), &data); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}

	return &data, nil
}
