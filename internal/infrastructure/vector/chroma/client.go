package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

// Client stores chunk embeddings in a Chroma collection and answers
// nearest-neighbor queries. Collections are addressed by server-assigned id;
// the id is resolved once via get_or_create and cached.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu     sync.Mutex
	collectionID string
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) IndexChunks(
	ctx context.Context,
	doc *domain.Document,
	chunks []domain.DocumentChunk,
	vectors [][]float32,
) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d vs %d", len(chunks), len(vectors))
	}

	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.VectorID
		documents[i] = chunk.Text
		metadatas[i] = map[string]any{
			"document_id":    chunk.DocumentID,
			"chunk_index":    chunk.ChunkIndex,
			"section":        chunk.Section,
			"file_name":      doc.FileName,
			"document_title": doc.Title,
		}
	}

	payload := map[string]any{
		"ids":        ids,
		"embeddings": vectors,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	path := fmt.Sprintf("/api/v1/collections/%s/add", collectionID)
	return c.postJSON(ctx, path, payload, nil, "add")
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"query_embeddings": [][]float32{queryVector},
		"n_results":        limit,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(filter.DocumentIDs) > 0 {
		payload["where"] = map[string]any{
			"document_id": map[string]any{"$in": filter.DocumentIDs},
		}
	}

	var response struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	path := fmt.Sprintf("/api/v1/collections/%s/query", collectionID)
	if err := c.postJSON(ctx, path, payload, &response, "query"); err != nil {
		return nil, err
	}
	if len(response.IDs) == 0 {
		return nil, nil
	}

	row := 0
	out := make([]domain.RetrievedChunk, 0, len(response.IDs[row]))
	for i, vectorID := range response.IDs[row] {
		chunk := domain.RetrievedChunk{VectorID: vectorID}
		if row < len(response.Documents) && i < len(response.Documents[row]) {
			chunk.Text = response.Documents[row][i]
		}
		if row < len(response.Distances) && i < len(response.Distances[row]) {
			chunk.Distance = response.Distances[row][i]
		}
		if row < len(response.Metadatas) && i < len(response.Metadatas[row]) {
			meta := response.Metadatas[row][i]
			chunk.DocumentID = getStringPayload(meta, "document_id")
			chunk.Section = getStringPayload(meta, "section")
			chunk.FileName = getStringPayload(meta, "file_name")
			chunk.DocumentTitle = getStringPayload(meta, "document_title")
			chunk.ChunkIndex = getIntPayload(meta, "chunk_index")
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var response struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"name":          c.collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	if err := c.postJSON(ctx, "/api/v1/collections", payload, &response, "ensure collection"); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("chroma ensure collection: empty collection id")
	}
	c.collectionID = response.ID
	return c.collectionID, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("chroma %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("chroma %s status: %s", operation, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
