package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/core/ports"
)

const (
	// relevanceSanityFloor removes degenerate matches far from the query.
	relevanceSanityFloor = 0.3
	defaultRetrieveTopK  = 5
)

type ChunkRetriever struct {
	embedder   ports.Embedder
	index      ports.VectorIndex
	repo       ports.DocumentRepository
	oversample int
}

func NewChunkRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	repo ports.DocumentRepository,
	oversample int,
) *ChunkRetriever {
	if oversample <= 0 {
		oversample = 20
	}
	return &ChunkRetriever{
		embedder:   embedder,
		index:      index,
		repo:       repo,
		oversample: oversample,
	}
}

// Retrieve returns up to topK evidence items for the query, restricted to
// allowedDocumentIDs when non-empty. An empty result is a normal outcome.
// When the vector index path fails, retrieval degrades to a lexical scan of
// stored chunks; an error is returned only if both paths fail.
func (r *ChunkRetriever) Retrieve(
	ctx context.Context,
	query string,
	allowedDocumentIDs []string,
	topK int,
	minScore float64,
) ([]domain.EvidenceItem, error) {
	if topK <= 0 {
		topK = defaultRetrieveTopK
	}

	chunks, err := r.semanticSearch(ctx, query, allowedDocumentIDs, topK)
	if err != nil {
		slog.Warn("semantic_retrieval_degraded", "error", err)
		return r.lexicalFallback(ctx, query, allowedDocumentIDs, topK)
	}

	floor := minScore
	if floor < relevanceSanityFloor {
		floor = relevanceSanityFloor
	}

	kept := make([]domain.RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		chunk.RelevanceScore = 1.0 / (1.0 + chunk.Distance)
		if chunk.RelevanceScore < floor {
			continue
		}
		kept = append(kept, chunk)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RelevanceScore > kept[j].RelevanceScore
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}

	kept = r.enrichWithDocumentMetadata(ctx, kept)
	return chunksToEvidence(kept), nil
}

func (r *ChunkRetriever) semanticSearch(
	ctx context.Context,
	query string,
	allowedDocumentIDs []string,
	topK int,
) ([]domain.RetrievedChunk, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := topK
	if limit < r.oversample {
		limit = r.oversample
	}

	chunks, err := r.index.Search(ctx, queryVector, limit, domain.SearchFilter{
		DocumentIDs: allowedDocumentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return chunks, nil
}

// enrichWithDocumentMetadata attaches document title and filename to each
// chunk. Enrichment is best effort: a store failure leaves the chunks as
// retrieved rather than failing the request.
func (r *ChunkRetriever) enrichWithDocumentMetadata(
	ctx context.Context,
	chunks []domain.RetrievedChunk,
) []domain.RetrievedChunk {
	if len(chunks) == 0 {
		return chunks
	}

	seen := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.DocumentID == "" {
			continue
		}
		if _, ok := seen[chunk.DocumentID]; ok {
			continue
		}
		seen[chunk.DocumentID] = struct{}{}
		ids = append(ids, chunk.DocumentID)
	}
	if len(ids) == 0 {
		return chunks
	}

	docs, err := r.repo.GetByIDs(ctx, ids)
	if err != nil {
		slog.Warn("chunk_metadata_enrichment_failed", "error", err)
		return chunks
	}

	for i := range chunks {
		doc, ok := docs[chunks[i].DocumentID]
		if !ok {
			continue
		}
		chunks[i].DocumentTitle = doc.Title
		chunks[i].FileName = doc.FileName
	}
	return chunks
}

func (r *ChunkRetriever) lexicalFallback(
	ctx context.Context,
	query string,
	allowedDocumentIDs []string,
	topK int,
) ([]domain.EvidenceItem, error) {
	stored, err := r.repo.ListChunksByDocumentIDs(ctx, allowedDocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("lexical fallback: list chunks: %w", err)
	}

	type scoredChunk struct {
		chunk domain.DocumentChunk
		score float64
	}
	scored := make([]scoredChunk, 0, len(stored))
	for _, chunk := range stored {
		score := lexicalScore(query, chunk.Text)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredChunk{chunk: chunk, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	out := make([]domain.EvidenceItem, 0, len(scored))
	for _, s := range scored {
		out = append(out, domain.EvidenceItem{
			Content: s.chunk.Text,
			Metadata: map[string]any{
				"document_id": s.chunk.DocumentID,
				"chunk_index": s.chunk.ChunkIndex,
				"section":     s.chunk.Section,
				"lexical":     true,
				"score":       s.score,
			},
		})
	}
	return out, nil
}

func chunksToEvidence(chunks []domain.RetrievedChunk) []domain.EvidenceItem {
	out := make([]domain.EvidenceItem, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, domain.EvidenceItem{
			Content: chunk.Text,
			Metadata: map[string]any{
				"document_id":     chunk.DocumentID,
				"chunk_index":     chunk.ChunkIndex,
				"section":         chunk.Section,
				"document_title":  chunk.DocumentTitle,
				"file_name":       chunk.FileName,
				"distance":        chunk.Distance,
				"relevance_score": chunk.RelevanceScore,
			},
		})
	}
	return out
}
