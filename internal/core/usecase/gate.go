package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

// QualityGate judges whether retrieved evidence is sufficient to answer a
// question for a stated goal. On rejection it proposes exactly one
// corrective action.
type QualityGate interface {
	Evaluate(ctx context.Context, goal, query string, evidence []domain.EvidenceItem) (domain.GateResult, error)
}

// HeuristicGate is a deliberately permissive gate: any evidence at all is
// treated as sufficient. It keeps the retrieval loop testable without a
// live model dependency.
type HeuristicGate struct{}

func (HeuristicGate) Evaluate(
	_ context.Context,
	_, _ string,
	evidence []domain.EvidenceItem,
) (domain.GateResult, error) {
	if len(evidence) == 0 {
		return domain.GateResult{
			Accept:         false,
			Confidence:     0,
			FailureReasons: []string{"no_evidence"},
			NextAction:     domain.ActionIncreaseTopK,
			ActionParams:   map[string]any{"top_k_delta": 5},
			Rationale:      "No evidence items provided.",
		}, nil
	}

	confidence := 0.5 + float64(len(evidence))/20.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	return domain.GateResult{
		Accept:         true,
		Confidence:     confidence,
		FailureReasons: []string{},
		Rationale:      fmt.Sprintf("Permissive gate: accepting %d evidence item(s) as sufficient.", len(evidence)),
	}, nil
}

// ModelGate delegates the sufficiency judgment to the completion service.
// The auditor prompt forbids answering the question or inventing facts; the
// model only judges relevance, sufficiency, source coverage and
// hallucination risk. An unparseable verdict falls back to a conservative
// rejection instead of crashing the loop or silently accepting.
type ModelGate struct {
	llm      ports.CompletionService
	maxItems int
}

func NewModelGate(llm ports.CompletionService, maxItems int) *ModelGate {
	if maxItems <= 0 {
		maxItems = 12
	}
	return &ModelGate{llm: llm, maxItems: maxItems}
}

func (g *ModelGate) Evaluate(
	ctx context.Context,
	goal, query string,
	evidence []domain.EvidenceItem,
) (domain.GateResult, error) {
	if len(evidence) == 0 {
		return HeuristicGate{}.Evaluate(ctx, goal, query, evidence)
	}

	completion, err := g.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildGateUserPrompt(goal, query, evidence, g.maxItems)},
		},
		SystemPrompt: gateSystemPrompt,
		Temperature:  0.0,
		MaxTokens:    600,
	})
	if err != nil {
		slog.Warn("gate_model_call_failed", "error", err)
		return conservativeRejection("gate_model_unavailable"), nil
	}

	verdict, err := parseGateVerdict(completion.Content)
	if err != nil {
		slog.Warn("gate_verdict_unparseable", "error", err)
		return conservativeRejection("gate_response_unparseable"), nil
	}
	return normalizeGateResult(verdict, len(evidence)), nil
}

func conservativeRejection(reason string) domain.GateResult {
	return domain.GateResult{
		Accept:         false,
		Confidence:     0,
		FailureReasons: []string{reason},
		NextAction:     domain.ActionRewriteQuery,
		Rationale:      "Falling back to conservative rejection.",
	}
}

type gateVerdict struct {
	Accept         bool           `json:"accept"`
	Confidence     float64        `json:"confidence"`
	FailureReasons []string       `json:"failure_reasons"`
	NextAction     string         `json:"next_action"`
	ActionParams   map[string]any `json:"action_params"`
	Rationale      string         `json:"rationale"`
}

func parseGateVerdict(raw string) (gateVerdict, error) {
	var verdict gateVerdict
	payload := extractJSONObject(raw)
	if payload == "" {
		return verdict, fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return verdict, fmt.Errorf("decode gate verdict: %w", err)
	}
	return verdict, nil
}

func normalizeGateResult(verdict gateVerdict, evidenceCount int) domain.GateResult {
	result := domain.GateResult{
		Accept:         verdict.Accept,
		Confidence:     clamp01(verdict.Confidence),
		FailureReasons: verdict.FailureReasons,
		ActionParams:   verdict.ActionParams,
		Rationale:      verdict.Rationale,
	}
	if result.FailureReasons == nil {
		result.FailureReasons = []string{}
	}

	if result.Accept {
		return result
	}

	result.NextAction = domain.NextAction(strings.TrimSpace(verdict.NextAction))
	if result.NextAction == "" {
		if evidenceCount == 0 {
			result.NextAction = domain.ActionIncreaseTopK
		} else {
			result.NextAction = domain.ActionRewriteQuery
		}
	}
	return result
}

// extractJSONObject tolerates markdown fences and surrounding prose around a
// single JSON object.
func extractJSONObject(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
