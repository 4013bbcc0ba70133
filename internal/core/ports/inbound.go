package ports

import (
	"context"
	"io"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, title, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// QuestionService answers a question from evidence retrieved over the
// caller's selected documents.
type QuestionService interface {
	Ask(ctx context.Context, goal, question string, documentIDs []string) (*domain.Answer, error)
}

// DiscoveryService finds and selects literature candidates for a topic.
type DiscoveryService interface {
	Discover(ctx context.Context, content, analysisGoal string, maxResults int) (*domain.DiscoveryResult, error)
}
