package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

const citationExcerptLimit = 200

// AskUseCase answers a question over the caller's documents: the retrieval
// loop gathers gate-approved evidence, then the model synthesizes an answer
// grounded in it. When the loop exhausts without acceptance, the answer says
// so instead of synthesizing from weak evidence.
type AskUseCase struct {
	controller *RetrievalController
	llm        ports.CompletionService
	opts       RetrievalOptions
}

func NewAskUseCase(controller *RetrievalController, llm ports.CompletionService, opts RetrievalOptions) *AskUseCase {
	return &AskUseCase{controller: controller, llm: llm, opts: opts}
}

func (a *AskUseCase) Ask(ctx context.Context, goal, question string, documentIDs []string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}

	result, err := a.controller.Run(ctx, goal, question, documentIDs, a.opts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "ask", err)
	}

	if !result.Accepted {
		return &domain.Answer{
			Text:           insufficientEvidenceText(result),
			Citations:      []domain.Citation{},
			Attempts:       result.Attempts,
			Accepted:       false,
			FailureReasons: result.Gate.FailureReasons,
		}, nil
	}

	completion, err := a.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildAnswerPrompt(goal, question, result.Evidence)},
		},
		SystemPrompt: answerSystemPrompt,
		Temperature:  0.2,
		MaxTokens:    1000,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "ask", fmt.Errorf("answer synthesis: %w", err))
	}

	return &domain.Answer{
		Text:       strings.TrimSpace(completion.Content),
		Citations:  citationsFromEvidence(result.Evidence),
		Attempts:   result.Attempts,
		Accepted:   true,
		TokensUsed: completion.Usage.TotalTokens,
	}, nil
}

func insufficientEvidenceText(result domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("Insufficient evidence was found to answer this question")
	b.WriteString(fmt.Sprintf(" after %d retrieval attempt(s).", result.Attempts))
	if len(result.Gate.FailureReasons) > 0 {
		b.WriteString(" Reasons: ")
		b.WriteString(strings.Join(result.Gate.FailureReasons, "; "))
		b.WriteString(".")
	}
	b.WriteString(" Try rephrasing the question or selecting additional documents.")
	return b.String()
}

func citationsFromEvidence(evidence []domain.EvidenceItem) []domain.Citation {
	citations := make([]domain.Citation, 0, len(evidence))
	for _, item := range evidence {
		excerpt := item.Content
		if len(excerpt) > citationExcerptLimit {
			excerpt = excerpt[:citationExcerptLimit] + "..."
		}
		citations = append(citations, domain.Citation{
			DocumentID:     metaString(item.Metadata, "document_id"),
			DocumentTitle:  metaString(item.Metadata, "document_title"),
			Section:        metaString(item.Metadata, "section"),
			ChunkIndex:     metaInt(item.Metadata, "chunk_index"),
			Excerpt:        excerpt,
			RelevanceScore: metaFloat(item.Metadata, "relevance_score"),
		})
	}
	return citations
}

func metaString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func metaFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
