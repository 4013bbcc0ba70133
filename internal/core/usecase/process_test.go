package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

type processRepoFake struct {
	doc           *domain.Document
	statuses      []domain.DocumentStatus
	lastError     string
	savedChunks   []domain.DocumentChunk
	savedSummary  string
	savedPages    int
	createChunksE error
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }
func (f *processRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.ErrDocumentNotFound
	}
	return f.doc, nil
}
func (f *processRepoFake) GetByIDs(context.Context, []string) (map[string]*domain.Document, error) {
	return nil, nil
}
func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	f.lastError = errMessage
	return nil
}
func (f *processRepoFake) SaveIndexingResult(_ context.Context, _ string, summary string, pages int) error {
	f.savedSummary = summary
	f.savedPages = pages
	return nil
}
func (f *processRepoFake) CreateChunks(_ context.Context, chunks []domain.DocumentChunk) error {
	if f.createChunksE != nil {
		return f.createChunksE
	}
	f.savedChunks = chunks
	return nil
}
func (f *processRepoFake) ListChunksByDocumentIDs(context.Context, []string) ([]domain.DocumentChunk, error) {
	return nil, nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "|")
}

func TestProcessHappyPath(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1", Title: "T"}}
	index := &vectorIndexFake{}
	llm := &completionFake{responses: []string{"A short summary."}}
	uc := NewProcessUseCase(repo, &extractorFake{text: "part one|part two"}, chunkerFake{}, &embedderFake{}, index, llm)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statuses) != 2 || repo.statuses[0] != domain.StatusIndexing || repo.statuses[1] != domain.StatusReady {
		t.Fatalf("expected indexing then ready, got %v", repo.statuses)
	}
	if len(repo.savedChunks) != 2 {
		t.Fatalf("expected 2 chunks persisted, got %d", len(repo.savedChunks))
	}
	for i, c := range repo.savedChunks {
		if c.ChunkIndex != i || c.DocumentID != "doc-1" || c.VectorID == "" {
			t.Fatalf("chunk %d malformed: %+v", i, c)
		}
	}
	if repo.savedSummary != "A short summary." {
		t.Fatalf("expected summary saved, got %q", repo.savedSummary)
	}
	if repo.savedPages != 1 {
		t.Fatalf("expected estimated page count 1, got %d", repo.savedPages)
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	uc := NewProcessUseCase(&processRepoFake{}, &extractorFake{}, chunkerFake{}, &embedderFake{}, &vectorIndexFake{}, nil)
	err := uc.ProcessByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestProcessExtractionFailureMarksFailed(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessUseCase(repo, &extractorFake{err: errors.New("corrupt pdf")}, chunkerFake{}, &embedderFake{}, &vectorIndexFake{}, nil)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if repo.statuses[len(repo.statuses)-1] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
	if !strings.Contains(repo.lastError, "corrupt pdf") {
		t.Fatalf("expected cause recorded, got %q", repo.lastError)
	}
}

func TestProcessEmptyTextMarksFailed(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessUseCase(repo, &extractorFake{text: ""}, chunkerFake{}, &embedderFake{}, &vectorIndexFake{}, nil)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected error for empty text")
	}
	if repo.statuses[len(repo.statuses)-1] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
}

func TestProcessEmbedFailureMarksFailed(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessUseCase(repo, &extractorFake{text: "a|b"}, chunkerFake{}, &embedderFake{err: errors.New("embed down")}, &vectorIndexFake{}, nil)

	if err := uc.ProcessByID(context.Background(), "doc-1"); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if repo.statuses[len(repo.statuses)-1] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", repo.statuses)
	}
}

func TestProcessSummaryFailureIsNonFatal(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	llm := &completionFake{err: errors.New("llm down")}
	uc := NewProcessUseCase(repo, &extractorFake{text: "a|b"}, chunkerFake{}, &embedderFake{}, &vectorIndexFake{}, llm)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.savedSummary != "" {
		t.Fatalf("expected empty summary, got %q", repo.savedSummary)
	}
	if repo.statuses[len(repo.statuses)-1] != domain.StatusReady {
		t.Fatalf("expected ready despite summary failure, got %v", repo.statuses)
	}
}
