package domain

// EvidenceItem is the unit of retrieved evidence handed to the quality gate
// and, on acceptance, to answer synthesis. Immutable once built.
type EvidenceItem struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetrievedChunk is the internal form a retrieval produces before conversion
// to EvidenceItem. RelevanceScore is 1/(1+Distance), so it stays in (0, 1].
type RetrievedChunk struct {
	VectorID       string  `json:"vector_id"`
	DocumentID     string  `json:"document_id"`
	ChunkIndex     int     `json:"chunk_index"`
	Section        string  `json:"section,omitempty"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	FileName       string  `json:"file_name,omitempty"`
	Text           string  `json:"text"`
	Distance       float64 `json:"distance"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SearchFilter restricts a vector query to the given documents.
// An empty id list means unrestricted search across all stored vectors.
type SearchFilter struct {
	DocumentIDs []string
}

type NextAction string

const (
	ActionIncreaseTopK     NextAction = "increase_top_k"
	ActionRewriteQuery     NextAction = "rewrite_query"
	ActionDiversifySources NextAction = "diversify_sources"
	ActionFocusSections    NextAction = "focus_sections"
	ActionAskClarification NextAction = "ask_user_clarification"
	ActionStop             NextAction = "stop"
)

// GateResult is the quality gate's verdict over a retrieved evidence set.
// NextAction is empty exactly when Accept is true.
type GateResult struct {
	Accept         bool           `json:"accept"`
	Confidence     float64        `json:"confidence"`
	FailureReasons []string       `json:"failure_reasons"`
	NextAction     NextAction     `json:"next_action,omitempty"`
	ActionParams   map[string]any `json:"action_params,omitempty"`
	Rationale      string         `json:"rationale,omitempty"`
}

// RetrievalResult is what the retrieval loop hands back to its caller: the
// last non-empty evidence set, the last gate verdict, and the attempts spent.
type RetrievalResult struct {
	Evidence []EvidenceItem `json:"evidence"`
	Gate     GateResult     `json:"gate"`
	Attempts int            `json:"attempts"`
	Accepted bool           `json:"accepted"`
	Query    string         `json:"query"`
}

type Citation struct {
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title"`
	Section        string  `json:"section,omitempty"`
	ChunkIndex     int     `json:"chunk_index"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Answer struct {
	Text           string     `json:"text"`
	Citations      []Citation `json:"citations"`
	Attempts       int        `json:"attempts"`
	Accepted       bool       `json:"accepted"`
	FailureReasons []string   `json:"failure_reasons,omitempty"`
	TokensUsed     int        `json:"tokens_used,omitempty"`
}
