package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// Client queries the arXiv Atom API for candidate papers. Results are
// returned raw and unscored; ranking happens upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.PaperCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("arxiv search: empty query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create arxiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("arxiv status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("arxiv status: %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	out := make([]domain.PaperCandidate, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		candidate := domain.PaperCandidate{
			Title:         normalizeWhitespace(entry.Title),
			Abstract:      normalizeWhitespace(entry.Summary),
			ExternalID:    externalIDFromAbsURL(entry.ID),
			PDFURL:        pdfLink(entry.Links),
			PublishedDate: entry.Published,
		}
		for _, author := range entry.Authors {
			if name := strings.TrimSpace(author.Name); name != "" {
				candidate.Authors = append(candidate.Authors, name)
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}

// externalIDFromAbsURL turns "http://arxiv.org/abs/2501.01234v2" into
// "2501.01234" so versions of the same paper dedupe together.
func externalIDFromAbsURL(absURL string) string {
	idx := strings.LastIndex(absURL, "/abs/")
	if idx < 0 {
		return absURL
	}
	id := absURL[idx+len("/abs/"):]
	if v := strings.LastIndex(id, "v"); v > 0 {
		if isDigits(id[v+1:]) {
			id = id[:v]
		}
	}
	return id
}

func pdfLink(links []atomLink) string {
	for _, link := range links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	return ""
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
