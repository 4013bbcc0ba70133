package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

const searchOversampleFactor = 4

// DiscoveryUseCase finds literature candidates for uploaded material: it
// derives a search query from the content, oversamples the external index,
// scores each candidate for relevance and reliability, and selects a
// diverse final set.
type DiscoveryUseCase struct {
	llm          ports.CompletionService
	searcher     ports.PaperSearcher
	ranker       *CandidateRanker
	minRelevance float64
	defaultMax   int
	now          func() time.Time
}

func NewDiscoveryUseCase(
	llm ports.CompletionService,
	searcher ports.PaperSearcher,
	ranker *CandidateRanker,
	minRelevance float64,
	defaultMax int,
) *DiscoveryUseCase {
	if defaultMax <= 0 {
		defaultMax = 5
	}
	return &DiscoveryUseCase{
		llm:          llm,
		searcher:     searcher,
		ranker:       ranker,
		minRelevance: minRelevance,
		defaultMax:   defaultMax,
		now:          time.Now,
	}
}

func (d *DiscoveryUseCase) Discover(
	ctx context.Context,
	content, analysisGoal string,
	maxResults int,
) (*domain.DiscoveryResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "discover", fmt.Errorf("content is empty"))
	}
	if maxResults <= 0 {
		maxResults = d.defaultMax
	}

	query := d.buildSearchQuery(ctx, content, analysisGoal)

	raw, err := d.searcher.Search(ctx, query, maxResults*searchOversampleFactor)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "discover", fmt.Errorf("paper search: %w", err))
	}

	pool := d.scorePool(ctx, analysisGoal, query, dedupeCandidates(raw))
	selected := d.ranker.Select(pool, maxResults)

	for i := range selected {
		for _, f := range selected[i].ReliabilityFlags {
			if f == "preprint" && !strings.HasPrefix(selected[i].Title, "[PREPRINT] ") {
				selected[i].Title = "[PREPRINT] " + selected[i].Title
			}
		}
	}

	return &domain.DiscoveryResult{
		SearchQuery:    query,
		PapersFound:    len(raw),
		PapersSelected: len(selected),
		Papers:         selected,
	}, nil
}

// buildSearchQuery asks the model for a focused literature query; the raw
// content's leading words serve as the query when the model is unavailable.
func (d *DiscoveryUseCase) buildSearchQuery(ctx context.Context, content, analysisGoal string) string {
	completion, err := d.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildSearchQueryPrompt(content, analysisGoal)},
		},
		SystemPrompt: searchQuerySystemPrompt,
		Temperature:  0.2,
		MaxTokens:    60,
	})
	if err != nil {
		slog.Warn("search_query_generation_failed", "error", err)
		return fallbackSearchQuery(content)
	}
	query := strings.TrimSpace(strings.Trim(strings.TrimSpace(completion.Content), `"`))
	if query == "" {
		return fallbackSearchQuery(content)
	}
	return query
}

func fallbackSearchQuery(content string) string {
	words := strings.Fields(content)
	if len(words) > 12 {
		words = words[:12]
	}
	return strings.Join(words, " ")
}

// scorePool evaluates each candidate's relevance with the model and its
// reliability heuristically, then filters and composites. Candidates whose
// relevance verdict cannot be obtained are skipped, not guessed at.
func (d *DiscoveryUseCase) scorePool(
	ctx context.Context,
	goal, query string,
	candidates []domain.PaperCandidate,
) []domain.PaperCandidate {
	currentYear := d.now().Year()
	pool := make([]domain.PaperCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		relevance, aspects, err := d.evaluateRelevance(ctx, goal, query, candidate)
		if err != nil {
			slog.Warn("paper_relevance_skipped", "external_id", candidate.ExternalID, "error", err)
			continue
		}
		if relevance < d.minRelevance {
			continue
		}
		reliability, flags := assessReliability(candidate, currentYear)

		candidate.RelevanceScore = relevance
		candidate.CoverageAspects = aspects
		candidate.ReliabilityScore = reliability
		candidate.ReliabilityFlags = flags
		candidate.CompositeScore = 0.6*relevance + 0.3*reliability + 0.1
		pool = append(pool, candidate)
	}
	return pool
}

type relevanceVerdict struct {
	RelevanceScore  float64  `json:"relevance_score"`
	CoverageAspects []string `json:"coverage_aspects"`
}

func (d *DiscoveryUseCase) evaluateRelevance(
	ctx context.Context,
	goal, query string,
	candidate domain.PaperCandidate,
) (float64, []string, error) {
	completion, err := d.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildPaperRelevancePrompt(goal, query, candidate)},
		},
		SystemPrompt: paperRelevanceSystemPrompt,
		Temperature:  0.0,
		MaxTokens:    200,
	})
	if err != nil {
		return 0, nil, err
	}
	payload := extractJSONObject(completion.Content)
	if payload == "" {
		return 0, nil, fmt.Errorf("no JSON object in relevance verdict")
	}
	var verdict relevanceVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return 0, nil, fmt.Errorf("decode relevance verdict: %w", err)
	}
	return clamp01(verdict.RelevanceScore), verdict.CoverageAspects, nil
}

func dedupeCandidates(candidates []domain.PaperCandidate) []domain.PaperCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.PaperCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.ExternalID
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(c.Title))
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
