package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

const defaultMaxAttempts = 5

// EvidenceRetriever is the slice of ChunkRetriever the controller depends on.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, query string, allowedDocumentIDs []string, topK int, minScore float64) ([]domain.EvidenceItem, error)
}

// RetrievalOptions tune a single retrieval loop run. Zero values fall back
// to defaults.
type RetrievalOptions struct {
	TopK        int
	MinScore    float64
	MaxAttempts int
}

// RetrievalController runs the retrieve-evaluate-adjust loop: retrieve
// evidence, ask the quality gate for a verdict, and either stop or apply the
// gate's corrective action before trying again. The loop always terminates
// within MaxAttempts and never returns an error for an unproductive search;
// exhaustion is a normal result the caller inspects via Accepted.
type RetrievalController struct {
	retriever EvidenceRetriever
	gate      QualityGate
	llm       ports.CompletionService
}

func NewRetrievalController(
	retriever EvidenceRetriever,
	gate QualityGate,
	llm ports.CompletionService,
) *RetrievalController {
	return &RetrievalController{retriever: retriever, gate: gate, llm: llm}
}

func (c *RetrievalController) Run(
	ctx context.Context,
	goal, question string,
	allowedDocumentIDs []string,
	opts RetrievalOptions,
) (domain.RetrievalResult, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	topK := opts.TopK

	query := question
	attempts := 0
	consecutiveEmpty := 0
	var lastEvidence []domain.EvidenceItem
	lastGate := domain.GateResult{
		Accept:         false,
		FailureReasons: []string{"no_evidence"},
		NextAction:     domain.ActionIncreaseTopK,
	}

	for attempts < maxAttempts {
		attempts++

		evidence, err := c.retriever.Retrieve(ctx, query, allowedDocumentIDs, topK, opts.MinScore)
		if err != nil {
			slog.Warn("retrieval_attempt_failed", "attempt", attempts, "error", err)
			lastGate.FailureReasons = appendReason(lastGate.FailureReasons, fmt.Sprintf("retrieval_error: %v", err))
			break
		}

		if len(evidence) == 0 {
			consecutiveEmpty++
			switch consecutiveEmpty {
			case 1:
				widened := topK * 3
				if widened < 50 {
					widened = 50
				}
				topK = widened
				continue
			case 2:
				query = c.rewriteQuery(ctx, query, []string{"no results — rewrite required"})
				continue
			default:
				lastGate.FailureReasons = appendReason(lastGate.FailureReasons, "repeated_empty_results")
			}
			break
		}
		consecutiveEmpty = 0
		lastEvidence = evidence

		gate, err := c.gate.Evaluate(ctx, goal, query, evidence)
		if err != nil {
			slog.Warn("gate_evaluation_failed", "attempt", attempts, "error", err)
			gate = conservativeRejection("gate_error")
		}
		lastGate = gate

		if gate.Accept {
			return domain.RetrievalResult{
				Evidence: evidence,
				Gate:     gate,
				Attempts: attempts,
				Accepted: true,
				Query:    query,
			}, nil
		}

		switch gate.NextAction {
		case domain.ActionIncreaseTopK, domain.ActionAskClarification:
			// No user to ask mid-loop; widening the net is the closest
			// recoverable move.
			if topK <= 0 {
				topK = defaultRetrieveTopK
			}
			topK *= 2
		case domain.ActionRewriteQuery:
			query = c.rewriteQuery(ctx, query, gate.FailureReasons)
		default:
			return domain.RetrievalResult{
				Evidence: lastEvidence,
				Gate:     lastGate,
				Attempts: attempts,
				Accepted: false,
				Query:    query,
			}, nil
		}
	}

	return domain.RetrievalResult{
		Evidence: lastEvidence,
		Gate:     lastGate,
		Attempts: attempts,
		Accepted: false,
		Query:    query,
	}, nil
}

// rewriteQuery asks the model for a better query; the original query is kept
// on any failure so the loop keeps moving.
func (c *RetrievalController) rewriteQuery(ctx context.Context, query string, failureReasons []string) string {
	if c.llm == nil {
		return query
	}
	completion, err := c.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildRewritePrompt(query, failureReasons)},
		},
		SystemPrompt: rewriteSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    120,
	})
	if err != nil {
		slog.Warn("query_rewrite_failed", "error", err)
		return query
	}
	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(completion.Content), `"`))
	if rewritten == "" {
		return query
	}
	return rewritten
}

func appendReason(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}
