package domain

// PaperCandidate is a literature candidate scored for relevance and
// reliability. Created once per discovery request and discarded after
// selection; nothing here is persisted.
type PaperCandidate struct {
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	Abstract         string   `json:"abstract"`
	ExternalID       string   `json:"external_id"`
	PDFURL           string   `json:"pdf_url,omitempty"`
	PublishedDate    string   `json:"published_date,omitempty"`
	RelevanceScore   float64  `json:"relevance_score"`
	ReliabilityScore float64  `json:"reliability_score"`
	CompositeScore   float64  `json:"composite_score"`
	ReliabilityFlags []string `json:"reliability_flags,omitempty"`
	CoverageAspects  []string `json:"coverage_aspects,omitempty"`
}

type DiscoveryResult struct {
	SearchQuery    string           `json:"search_query"`
	PapersFound    int              `json:"papers_found"`
	PapersSelected int              `json:"papers_selected"`
	Papers         []PaperCandidate `json:"papers"`
}
