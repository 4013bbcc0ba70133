package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

type retrieverCall struct {
	query string
	topK  int
}

type retrieverFake struct {
	results [][]domain.EvidenceItem
	errs    []error
	calls   []retrieverCall
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, _ []string, topK int, _ float64) ([]domain.EvidenceItem, error) {
	f.calls = append(f.calls, retrieverCall{query: query, topK: topK})
	i := len(f.calls) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, nil
}

type gateFake struct {
	verdicts []domain.GateResult
	errs     []error
	calls    int
}

func (f *gateFake) Evaluate(context.Context, string, string, []domain.EvidenceItem) (domain.GateResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.GateResult{}, f.errs[i]
	}
	if i < len(f.verdicts) {
		return f.verdicts[i], nil
	}
	return domain.GateResult{Accept: true, Confidence: 1}, nil
}

func TestControllerAcceptsFirstAttempt(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{evidenceItems(3)}}
	gate := &gateFake{verdicts: []domain.GateResult{{Accept: true, Confidence: 0.8}}}
	ctrl := NewRetrievalController(retriever, gate, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Accepted || result.Attempts != 1 {
		t.Fatalf("expected acceptance on attempt 1, got %+v", result)
	}
	if len(result.Evidence) != 3 {
		t.Fatalf("expected 3 evidence items, got %d", len(result.Evidence))
	}
}

func TestControllerIncreaseTopKDoubles(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{
		evidenceItems(2),
		evidenceItems(6),
	}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionIncreaseTopK, FailureReasons: []string{"too_thin"}},
		{Accept: true, Confidence: 0.9},
	}}
	ctrl := NewRetrievalController(retriever, gate, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Accepted || result.Attempts != 2 {
		t.Fatalf("expected acceptance on attempt 2, got %+v", result)
	}
	if got := retriever.calls[1].topK; got != 10 {
		t.Fatalf("expected doubled topK=10, got %d", got)
	}
}

func TestControllerRewriteQueryUsesModel(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{
		evidenceItems(2),
		evidenceItems(4),
	}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionRewriteQuery, FailureReasons: []string{"off_topic"}},
		{Accept: true, Confidence: 0.9},
	}}
	llm := &completionFake{responses: []string{"sharper question"}}
	ctrl := NewRetrievalController(retriever, gate, llm)

	result, err := ctrl.Run(context.Background(), "goal", "original question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected acceptance, got %+v", result)
	}
	if retriever.calls[1].query != "sharper question" {
		t.Fatalf("expected rewritten query on attempt 2, got %q", retriever.calls[1].query)
	}
	if result.Query != "sharper question" {
		t.Fatalf("result must carry the final query, got %q", result.Query)
	}
}

func TestControllerRewriteFailureKeepsOriginalQuery(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{
		evidenceItems(2),
		evidenceItems(2),
	}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionRewriteQuery},
		{Accept: true},
	}}
	ctrl := NewRetrievalController(retriever, gate, &completionFake{err: errors.New("llm down")})

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if retriever.calls[1].query != "question" {
		t.Fatalf("expected original query retained, got %q", retriever.calls[1].query)
	}
	if !result.Accepted {
		t.Fatalf("expected acceptance, got %+v", result)
	}
}

func TestControllerStopActionExhaustsImmediately(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{evidenceItems(2)}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionStop, FailureReasons: []string{"unanswerable"}},
	}}
	ctrl := NewRetrievalController(retriever, gate, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Accepted || result.Attempts != 1 {
		t.Fatalf("expected exhaustion after one attempt, got %+v", result)
	}
	if len(result.Evidence) != 2 {
		t.Fatalf("exhausted result must carry last evidence, got %d items", len(result.Evidence))
	}
}

func TestControllerUnknownActionExhausts(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{evidenceItems(2)}}
	gate := &gateFake{verdicts: []domain.GateResult{
		{Accept: false, NextAction: domain.ActionDiversifySources},
	}}
	ctrl := NewRetrievalController(retriever, gate, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Accepted || result.Attempts != 1 {
		t.Fatalf("unrecognized action must end the loop, got %+v", result)
	}
}

func TestControllerMaxAttemptsBound(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{
		evidenceItems(1), evidenceItems(1), evidenceItems(1), evidenceItems(1), evidenceItems(1), evidenceItems(1),
	}}
	reject := domain.GateResult{Accept: false, NextAction: domain.ActionIncreaseTopK, FailureReasons: []string{"thin"}}
	gate := &gateFake{verdicts: []domain.GateResult{reject, reject, reject, reject, reject, reject}}
	ctrl := NewRetrievalController(retriever, gate, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{MaxAttempts: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Attempts != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", result.Attempts)
	}
	if result.Accepted {
		t.Fatalf("expected exhaustion")
	}
}

func TestControllerEmptyResultsEscalation(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{nil, nil, nil}}
	gate := &gateFake{}
	llm := &completionFake{responses: []string{"rewritten"}}
	ctrl := NewRetrievalController(retriever, gate, llm)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Accepted {
		t.Fatalf("expected exhaustion")
	}
	if len(retriever.calls) != 3 {
		t.Fatalf("expected 3 retrieval attempts, got %d", len(retriever.calls))
	}
	if retriever.calls[1].topK != 50 {
		t.Fatalf("first empty result must widen topK to 50, got %d", retriever.calls[1].topK)
	}
	if retriever.calls[2].query != "rewritten" {
		t.Fatalf("second empty result must rewrite the query, got %q", retriever.calls[2].query)
	}
	if gate.calls != 0 {
		t.Fatalf("gate must not run on empty evidence, got %d calls", gate.calls)
	}
}

func TestControllerRetrievalErrorEndsLoop(t *testing.T) {
	retriever := &retrieverFake{errs: []error{errors.New("index down")}}
	ctrl := NewRetrievalController(retriever, &gateFake{}, nil)

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("retrieval failure must not surface as an error, got %v", err)
	}
	if result.Accepted || result.Attempts != 1 {
		t.Fatalf("expected single failed attempt, got %+v", result)
	}
	found := false
	for _, reason := range result.Gate.FailureReasons {
		if reason == "retrieval_error: index down" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected retrieval_error reason, got %v", result.Gate.FailureReasons)
	}
}

func TestControllerGateErrorFallsBackToRejection(t *testing.T) {
	retriever := &retrieverFake{results: [][]domain.EvidenceItem{
		evidenceItems(2),
		evidenceItems(2),
	}}
	gate := &gateFake{
		errs:     []error{errors.New("gate down"), nil},
		verdicts: []domain.GateResult{{}, {Accept: true}},
	}
	ctrl := NewRetrievalController(retriever, gate, &completionFake{responses: []string{"better"}})

	result, err := ctrl.Run(context.Background(), "goal", "question", nil, RetrievalOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Accepted || result.Attempts != 2 {
		t.Fatalf("expected recovery on attempt 2, got %+v", result)
	}
}
