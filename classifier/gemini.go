package classifier

import (
	"context"
	"log"
	"os"

	"github.com/scottlabbe/MedicaidReportAIMiner/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClassifier classifies documents through the Gemini API
type GeminiClassifier struct {
	client    *genai.Client
	modelName string
	apiKey    string
}

// NewGeminiClassifier builds a Gemini-backed classifier. With no API key in
// the environment the classifier is constructed unavailable rather than
// failing, so fallback selection can run.
func NewGeminiClassifier(ctx context.Context, model string) *GeminiClassifier {
	if model == "" {
		model = defaultGeminiModel
	}

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	c := &GeminiClassifier{modelName: model, apiKey: apiKey}
	if apiKey == "" {
		log.Println("Warning: GOOGLE_GEMINI_API_KEY not found in environment")
		return c
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		log.Printf("Failed to initialize Gemini client: %v", err)
		return c
	}
	c.client = client

	return c
}

// Available reports whether the Gemini backend can be used
func (c *GeminiClassifier) Available() bool {
	return c.client != nil && c.apiKey != ""
}

// ProviderName identifies this backend
func (c *GeminiClassifier) ProviderName() string {
	return "Gemini"
}

// ClassifyDocument judges a document with Gemini. All failures degrade to a
// Classification with Success=false.
func (c *GeminiClassifier) ClassifyDocument(ctx context.Context, doc Document) models.Classification {
	if !c.Available() {
		return failedClassification(c.ProviderName(), "Missing GOOGLE_GEMINI_API_KEY")
	}

	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(200)

	resp, err := model.GenerateContent(ctx, genai.Text(classificationPrompt(doc)))
	if err != nil {
		return failedClassification(c.ProviderName(), err.Error())
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return failedClassification(c.ProviderName(), "empty response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	return parseClassification(text, c.ProviderName())
}
