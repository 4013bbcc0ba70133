package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusIndexing DocumentStatus = "indexing"
	StatusReady    DocumentStatus = "ready"
	StatusFailed   DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	FileName    string         `json:"file_name"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Authors     []string       `json:"authors,omitempty"`
	Year        int            `json:"year,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	PageCount   int            `json:"page_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DocumentChunk is the persisted form of an indexed passage. Chunk rows back
// the lexical fallback when the vector index is unreachable.
type DocumentChunk struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Section    string `json:"section,omitempty"`
	Text       string `json:"text"`
	VectorID   string `json:"vector_id"`
}
