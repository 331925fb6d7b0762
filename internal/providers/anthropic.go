package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultMaxTokens      = 1024
)

// Anthropic asks a Claude model to reason as the provider.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic-backed analyzer. The API key falls back to
// the ANTHROPIC_API_KEY environment variable when cfg.APIKey is empty.
func NewAnthropic(cfg Config) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name implements Analyzer.
func (a *Anthropic) Name() string {
	return BackendAnthropic
}

// Analyze implements Analyzer.
func (a *Anthropic) Analyze(ctx context.Context, provider models.CapabilityProvider, query, queryContext string) (models.Assessment, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(provider, query, queryContext))),
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return models.Assessment{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var parts []string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			parts = append(parts, resp.Content[i].Text)
		}
	}
	return parseAssessment(provider.ID, strings.Join(parts, ""))
}
