package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

// ProcessUseCase turns an uploaded document into searchable evidence:
// extract text, split into passages, embed, persist chunk rows, index the
// vectors, and record a short summary. Any failure marks the document
// failed with the cause; a later retry starts over from extraction.
type ProcessUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	llm       ports.CompletionService
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	llm ports.CompletionService,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		llm:       llm,
	}
}

func (u *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := u.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "process", fmt.Errorf("load document %s: %w", documentID, err))
	}

	if err := u.repo.UpdateStatus(ctx, doc.ID, domain.StatusIndexing, ""); err != nil {
		return domain.WrapError(domain.ErrTemporary, "process", fmt.Errorf("mark indexing: %w", err))
	}

	text, err := u.extractor.Extract(ctx, doc)
	if err != nil {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("extract text: %w", err))
	}
	if text == "" {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("document has no extractable text"))
	}

	parts := u.chunker.Split(text)
	if len(parts) == 0 {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("chunking produced no passages"))
	}

	vectors, err := u.embedder.Embed(ctx, parts)
	if err != nil {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("embed passages: %w", err))
	}
	if len(vectors) != len(parts) {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("embedding count mismatch: %d passages, %d vectors", len(parts), len(vectors)))
	}

	chunks := make([]domain.DocumentChunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       part,
			VectorID:   uuid.NewString(),
		}
	}
	if err := u.repo.CreateChunks(ctx, chunks); err != nil {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("persist chunks: %w", err))
	}
	if err := u.index.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("index vectors: %w", err))
	}

	summary := u.summarize(ctx, doc.Title, text)
	if err := u.repo.SaveIndexingResult(ctx, doc.ID, summary, estimatePageCount(text)); err != nil {
		return u.markFailed(ctx, doc.ID, fmt.Errorf("save indexing result: %w", err))
	}

	if err := u.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""); err != nil {
		return domain.WrapError(domain.ErrTemporary, "process", fmt.Errorf("mark ready: %w", err))
	}
	slog.Info("document_indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

func (u *ProcessUseCase) markFailed(ctx context.Context, id string, cause error) error {
	if err := u.repo.UpdateStatus(ctx, id, domain.StatusFailed, cause.Error()); err != nil {
		slog.Error("mark_failed_status_error", "document_id", id, "error", err)
	}
	return domain.WrapError(domain.ErrTemporary, "process", cause)
}

// summarize is best-effort: an indexing run never fails because the summary
// model is down.
func (u *ProcessUseCase) summarize(ctx context.Context, title, text string) string {
	if u.llm == nil {
		return ""
	}
	completion, err := u.llm.Generate(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildSummaryPrompt(title, text)},
		},
		SystemPrompt: summarySystemPrompt,
		Temperature:  0.2,
		MaxTokens:    160,
	})
	if err != nil {
		slog.Warn("document_summary_skipped", "error", err)
		return ""
	}
	return completion.Content
}

// estimatePageCount approximates pages for extractors that lose pagination.
func estimatePageCount(text string) int {
	const charsPerPage = 3000
	pages := (len(text) + charsPerPage - 1) / charsPerPage
	if pages < 1 {
		pages = 1
	}
	return pages
}
