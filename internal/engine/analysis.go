package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// AnalysisRequest asks several providers for independent views on a query.
type AnalysisRequest struct {
	Query     string   `json:"query"`
	Context   string   `json:"context,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// AnalysisResult is an advisory synthesis of the provider assessments. The
// consensus score is a heuristic, not a statistical measure.
type AnalysisResult struct {
	Query             string              `json:"query"`
	Providers         []string            `json:"providers"`
	Analyses          []models.Assessment `json:"analyses"`
	FailedProviders   []string            `json:"failed_providers,omitempty"`
	ConvergentThemes  []string            `json:"convergent_themes"`
	DivergentViews    []string            `json:"divergent_views"`
	Conclusion        string              `json:"conclusion"`
	AverageConfidence float64             `json:"average_confidence"`
	ConsensusScore    float64             `json:"consensus_score"`
	Recommendations   []string            `json:"recommendations"`
}

// CoordinatedAnalysis fans a query out to the selected providers and
// synthesises what came back. Providers that fail or time out are listed in
// FailedProviders and the synthesis runs on the rest.
func (e *Engine) CoordinatedAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	selected := e.selectAnalysisProviders(req.Query, req.Providers)

	assessments := make([]*models.Assessment, len(selected))
	var g errgroup.Group
	for i, id := range selected {
		provider, _ := e.registry.Get(id)
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, e.analysisTimeout)
			defer cancel()
			a, err := e.analyzer.Analyze(actx, provider, req.Query, req.Context)
			if err != nil {
				e.externalFailed("analyzer", err,
					zap.String("analyzer", e.analyzer.Name()),
					zap.String("provider", id))
				return nil
			}
			a.ProviderID = id
			assessments[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	result := &AnalysisResult{
		Query:     req.Query,
		Providers: selected,
	}
	for i, a := range assessments {
		if a == nil {
			result.FailedProviders = append(result.FailedProviders, selected[i])
			continue
		}
		result.Analyses = append(result.Analyses, *a)
	}

	synthesize(result)

	e.logger.Info("coordinated analysis complete",
		zap.Strings("providers", selected),
		zap.Int("failed", len(result.FailedProviders)),
		zap.Float64("consensus", result.ConsensusScore),
	)
	return result, nil
}

// selectAnalysisProviders honours an explicit list (dropping unknown ids) or
// matches query keywords against capabilities. The default provider is always
// included and the selection is capped.
func (e *Engine) selectAnalysisProviders(query string, explicit []string) []string {
	var ids []string
	if len(explicit) > 0 {
		ids = e.registry.Filter(explicit)
	} else {
		words := keywords(query)
		for _, p := range e.registry.List() {
			if capabilityMatches(p.Capabilities, words) {
				ids = append(ids, p.ID)
			}
		}
		def := e.registry.DefaultID()
		if !containsString(ids, def) {
			ids = append([]string{def}, ids...)
		}
	}
	if len(ids) == 0 {
		ids = []string{e.registry.DefaultID()}
	}
	if len(ids) > maxAnalysisProviders {
		ids = ids[:maxAnalysisProviders]
	}
	return ids
}

func synthesize(r *AnalysisResult) {
	r.ConvergentThemes = convergentThemes(r.Analyses)
	r.DivergentViews = divergentViews(r.Analyses)

	var agreement float64
	if n := len(r.Analyses); n > 0 {
		var total float64
		for _, a := range r.Analyses {
			total += a.Confidence
		}
		r.AverageConfidence = total / float64(n)
		_, count := majorityStance(r.Analyses)
		agreement = float64(count) / float64(n)
		r.ConsensusScore = math.Max(0.6, math.Min(0.9, 0.6+0.3*agreement))
	} else {
		r.ConsensusScore = 0.6
	}

	switch {
	case r.AverageConfidence > 0.8:
		r.Conclusion = "high confidence"
	case r.AverageConfidence > 0.6:
		r.Conclusion = "moderate confidence"
	default:
		r.Conclusion = "low confidence - investigate further"
	}

	r.Recommendations = []string{fmt.Sprintf("Monitor developments with %d providers", len(r.Analyses))}
	if len(r.DivergentViews) > 0 {
		r.Recommendations = append(r.Recommendations, "Reconcile divergent views before committing resources")
	}
	if r.AverageConfidence > 0.8 {
		r.Recommendations = append(r.Recommendations, "Proceed with coordinated response")
	} else {
		r.Recommendations = append(r.Recommendations, "Gather additional intelligence before acting")
	}
}

// convergentThemes returns themes named by at least two assessments, most
// common first, then alphabetically.
func convergentThemes(analyses []models.Assessment) []string {
	counts := make(map[string]int)
	for _, a := range analyses {
		seen := make(map[string]bool)
		for _, t := range a.Themes {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}

	themes := []string{}
	for t, n := range counts {
		if n >= 2 {
			themes = append(themes, t)
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return themes[i] < themes[j]
	})
	return themes
}

// majorityStance returns the most common stance; ties go to the first seen.
func majorityStance(analyses []models.Assessment) (string, int) {
	counts := make(map[string]int)
	var order []string
	for _, a := range analyses {
		if _, ok := counts[a.Stance]; !ok {
			order = append(order, a.Stance)
		}
		counts[a.Stance]++
	}
	var best string
	var bestCount int
	for _, s := range order {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best, bestCount
}

func divergentViews(analyses []models.Assessment) []string {
	majority, _ := majorityStance(analyses)
	views := []string{}
	for _, a := range analyses {
		if a.Stance != majority {
			views = append(views, fmt.Sprintf("%s favours %q while the majority favours %q", a.ProviderID, a.Stance, majority))
		}
	}
	return views
}
