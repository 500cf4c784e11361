package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	chatCompletionsAPI = "https://api.openai.com/v1/chat/completions"
)

// OpenAIClassifier classifies documents through the OpenAI chat
// completions API
type OpenAIClassifier struct {
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClassifier builds an OpenAI-backed classifier. With no API key in
// the environment the classifier is constructed unavailable rather than
// failing, so fallback selection can run.
func NewOpenAIClassifier(model string) *OpenAIClassifier {
	if model == "" {
		model = defaultOpenAIModel
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY not found in environment")
	}

	return &OpenAIClassifier{
		model:  model,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Available reports whether the OpenAI backend can be used
func (c *OpenAIClassifier) Available() bool {
	return c.apiKey != ""
}

// ProviderName identifies this backend
func (c *OpenAIClassifier) ProviderName() string {
	return "OpenAI"
}

// ClassifyDocument judges a document with OpenAI. All failures degrade to a
// Classification with Success=false.
func (c *OpenAIClassifier) ClassifyDocument(ctx context.Context, doc Document) models.Classification {
	if !c.Available() {
		return failedClassification(c.ProviderName(), "Missing OPENAI_API_KEY")
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are a document classification expert. Analyze documents to determine if they are Medicaid audit reports. Respond only with valid JSON.",
			},
			{
				"role":    "user",
				"content": classificationPrompt(doc),
			},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.1,
		"max_tokens":      200,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return failedClassification(c.ProviderName(), "failed to marshal request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, "POST", chatCompletionsAPI, bytes.NewBuffer(jsonData))
	if err != nil {
		return failedClassification(c.ProviderName(), "failed to create request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failedClassification(c.ProviderName(), "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return failedClassification(c.ProviderName(), fmt.Sprintf("API error: %d - %.200s", resp.StatusCode, string(bodyBytes)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return failedClassification(c.ProviderName(), "failed to decode response: "+err.Error())
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return failedClassification(c.ProviderName(), "empty response")
	}

	return parseClassification(apiResp.Choices[0].Message.Content, c.ProviderName())
}
