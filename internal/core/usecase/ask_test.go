package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

func acceptedEvidence() []domain.EvidenceItem {
	return []domain.EvidenceItem{
		{
			Content: "Tau aggregation accelerates under oxidative stress.",
			Metadata: map[string]any{
				"document_id":     "d1",
				"document_title":  "Tau Pathology",
				"section":         "results",
				"chunk_index":     2,
				"relevance_score": 0.91,
			},
		},
	}
}

func newAskFixture(retriever *retrieverFake, gate *gateFake, llm *completionFake) *AskUseCase {
	ctrl := NewRetrievalController(retriever, gate, llm)
	return NewAskUseCase(ctrl, llm, RetrievalOptions{TopK: 5, MaxAttempts: 5})
}

func TestAskSynthesizesFromAcceptedEvidence(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{acceptedEvidence()}}
	gate := &gateFake{verdicts: []domain.GateResult{{Accept: true, Confidence: 0.9}}}
	llm := &completionFake{responses: []string{"Oxidative stress accelerates tau aggregation [1]."}}
	uc := newAskFixture(retriever, gate, llm)

	answer, err := uc.Ask(context.Background(), "tau biology", "what accelerates tau aggregation?", []string{"d1"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.Accepted || answer.Attempts != 1 {
		t.Fatalf("expected accepted answer on attempt 1, got %+v", answer)
	}
	if answer.Text != "Oxidative stress accelerates tau aggregation [1]." {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
	cit := answer.Citations[0]
	if cit.DocumentID != "d1" || cit.DocumentTitle != "Tau Pathology" || cit.ChunkIndex != 2 {
		t.Fatalf("unexpected citation %+v", cit)
	}
	if answer.TokensUsed != 10 {
		t.Fatalf("expected token usage propagated, got %d", answer.TokensUsed)
	}
}

func TestAskEmptyQuestionRejected(t *testing.T) {
	uc := newAskFixture(&retrieverFake{}, &gateFake{}, &completionFake{})
	_, err := uc.Ask(context.Background(), "goal", "  ", nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAskExhaustionSkipsSynthesis(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{evidenceItems(1)}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionStop, FailureReasons: []string{"unanswerable"}},
	}}
	llm := &completionFake{responses: []string{"must not be used"}}
	uc := newAskFixture(retriever, gate, llm)

	answer, err := uc.Ask(context.Background(), "goal", "question", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Accepted {
		t.Fatalf("expected unaccepted answer")
	}
	if !strings.Contains(answer.Text, "Insufficient evidence") {
		t.Fatalf("expected explicit insufficiency text, got %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "unanswerable") {
		t.Fatalf("expected failure reasons surfaced, got %q", answer.Text)
	}
	if len(llm.requests) != 0 {
		t.Fatalf("synthesis must not run on exhaustion, got %d llm calls", len(llm.requests))
	}
	if len(answer.Citations) != 0 {
		t.Fatalf("expected no citations, got %d", len(answer.Citations))
	}
}

func TestAskSynthesisFailure(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{acceptedEvidence()}}
	gate := &gateFake{verdicts: []domain.GateResult{{Accept: true}}}
	llm := &completionFake{err: errors.New("model down")}
	uc := newAskFixture(retriever, gate, llm)

	_, err := uc.Ask(context.Background(), "goal", "question", nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestAskTruncatesLongExcerpts(t *testing.T) {
	long := strings.Repeat("a", 450)
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{{
		{Content: long, Metadata: map[string]any{"document_id": "d1"}},
	}}}
	gate := &gateFake{verdicts: []domain.GateResult{{Accept: true}}}
	llm := &completionFake{responses: []string{"answer"}}
	uc := newAskFixture(retriever, gate, llm)

	answer, err := uc.Ask(context.Background(), "goal", "question", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got := len(answer.Citations[0].Excerpt); got != citationExcerptLimit+3 {
		t.Fatalf("expected excerpt truncated to %d+ellipsis, got %d", citationExcerptLimit, got)
	}
}
