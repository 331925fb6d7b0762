// Package providers defines how the coordinator obtains independent analyses
// from capability providers.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// Analyzer produces one provider's assessment of a query.
type Analyzer interface {
	// Name returns the analyzer backend identifier.
	Name() string

	// Analyze returns the provider's independent assessment.
	Analyze(ctx context.Context, provider models.CapabilityProvider, query, queryContext string) (models.Assessment, error)
}

// Backend names accepted by New.
const (
	BackendStatic    = "static"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
)

// Config selects and configures an analyzer backend.
type Config struct {
	Backend   string `yaml:"backend" koanf:"backend"`
	Model     string `yaml:"model" koanf:"model"`
	APIKey    string `yaml:"api_key" koanf:"api_key"`
	MaxTokens int    `yaml:"max_tokens" koanf:"max_tokens"`
}

// New builds the analyzer named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Analyzer, error) {
	switch cfg.Backend {
	case "", BackendStatic:
		return NewStatic(), nil
	case BackendAnthropic:
		return NewAnthropic(cfg), nil
	case BackendGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown analyzer backend %q", cfg.Backend)
	}
}

func buildPrompt(provider models.CapabilityProvider, query, queryContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %q capability provider of a PR and communications platform.\n", provider.ID)
	fmt.Fprintf(&b, "Your capabilities: %s.\n\n", strings.Join(provider.Capabilities, ", "))
	fmt.Fprintf(&b, "Query: %s\n", query)
	if queryContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", queryContext)
	}
	b.WriteString("\nRespond with a single JSON object and nothing else, with fields: ")
	b.WriteString(`"summary" (string), "key_findings" (array of strings), "themes" (array of short lower_snake_case strings), `)
	b.WriteString(`"stance" (one of "act_now", "prepare", "monitor"), "confidence" (number between 0 and 1).`)
	return b.String()
}

// parseAssessment extracts the JSON object from a model's text reply.
func parseAssessment(providerID, text string) (models.Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.Assessment{}, fmt.Errorf("no JSON object in response from %s", providerID)
	}
	var a models.Assessment
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return models.Assessment{}, fmt.Errorf("decode assessment from %s: %w", providerID, err)
	}
	a.ProviderID = providerID
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a, nil
}
