package providers

import (
	"context"
	"fmt"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini asks a Google Gemini model to reason as the provider.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed analyzer. The API key falls back to the
// GOOGLE_API_KEY / GEMINI_API_KEY environment variables when cfg.APIKey is empty.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

// Name implements Analyzer.
func (g *Gemini) Name() string {
	return BackendGemini
}

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, provider models.CapabilityProvider, query, queryContext string) (models.Assessment, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(provider, query, queryContext), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return models.Assessment{}, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseAssessment(provider.ID, resp.Text())
}
