package ports

import (
	"context"
	"io"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document and chunk metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexingResult(ctx context.Context, id string, summary string, pageCount int) error
	CreateChunks(ctx context.Context, chunks []domain.DocumentChunk) error
	ListChunksByDocumentIDs(ctx context.Context, ids []string) ([]domain.DocumentChunk, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document indexing events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into indexable passages.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex stores passage embeddings and answers nearest-neighbor queries.
// An empty filter searches all stored vectors.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.DocumentChunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// CompletionService is the stateless chat-completion collaborator. It must be
// safe for concurrent use and is expected to rate-limit and retry internally.
// Failures are distinguishable via domain.ErrRateLimited,
// domain.ErrMalformedResponse and domain.ErrTemporary.
type CompletionService interface {
	Generate(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

// PaperSearcher queries an external literature index for raw candidates.
type PaperSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.PaperCandidate, error)
}
