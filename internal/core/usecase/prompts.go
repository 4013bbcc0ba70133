package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

const gateSystemPrompt = `You are a strict evidence auditor for a scientific research assistant.
You judge whether retrieved document excerpts are sufficient to answer a question.
You NEVER answer the question yourself and you NEVER invent facts.
Respond with a single JSON object and nothing else.`

const gateEvidenceLimit = 400

func buildGateUserPrompt(goal, query string, evidence []domain.EvidenceItem, maxItems int) string {
	summaries := make([]map[string]any, 0, maxItems)
	for i, item := range evidence {
		if i >= maxItems {
			break
		}
		content := item.Content
		if len(content) > gateEvidenceLimit {
			content = content[:gateEvidenceLimit] + "..."
		}
		summaries = append(summaries, map[string]any{
			"index":    i,
			"content":  content,
			"metadata": item.Metadata,
		})
	}

	payload := map[string]any{
		"analysis_goal": goal,
		"query":         query,
		"evidence":      summaries,
		"evaluation_criteria": []string{
			"relevance: do the excerpts address the query",
			"sufficiency: is there enough material for a grounded answer",
			"source_coverage: do the excerpts span more than one source when the query needs it",
			"hallucination_risk: would answering require facts absent from the excerpts",
		},
		"output_schema": map[string]any{
			"accept":          "bool",
			"confidence":      "float 0..1",
			"failure_reasons": "list of short strings, empty when accepting",
			"next_action":     "one of increase_top_k|rewrite_query|diversify_sources|focus_sections|ask_user_clarification|stop",
			"action_params":   "object, optional",
			"rationale":       "one or two sentences",
		},
		"rules": []string{
			"when accept is false, propose exactly one next_action",
			"when accept is true, omit next_action",
			"never answer the query, only audit the evidence",
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		// Marshalling maps of strings cannot realistically fail; keep the
		// loop alive regardless.
		return fmt.Sprintf("Audit evidence for query %q (goal %q).", query, goal)
	}
	return "Audit the following retrieval outcome and return the verdict JSON.\n" + string(encoded)
}

const rewriteSystemPrompt = `You rewrite search queries for a scientific document retrieval system.
Return only the rewritten query text, with no quotes and no explanation.`

func buildRewritePrompt(query string, failureReasons []string) string {
	var b strings.Builder
	b.WriteString("The query below failed to retrieve sufficient evidence.\n")
	b.WriteString("Original query: ")
	b.WriteString(query)
	b.WriteString("\n")
	if len(failureReasons) > 0 {
		b.WriteString("Failure reasons: ")
		b.WriteString(strings.Join(failureReasons, "; "))
		b.WriteString("\n")
	}
	b.WriteString("Rewrite it to retrieve better evidence. Keep the scientific intent, broaden or sharpen terminology as needed.")
	return b.String()
}

const answerSystemPrompt = `You are a scientific research assistant.
Answer strictly from the numbered context excerpts.
Cite excerpts inline as [1], [2] and so on.
If the context does not contain the answer, say so explicitly.`

func buildAnswerPrompt(goal, question string, evidence []domain.EvidenceItem) string {
	var b strings.Builder
	if goal != "" {
		b.WriteString("Analysis goal: ")
		b.WriteString(goal)
		b.WriteString("\n\n")
	}
	b.WriteString("Context excerpts:\n")
	for i, item := range evidence {
		title, _ := item.Metadata["document_title"].(string)
		b.WriteString(fmt.Sprintf("[%d]", i+1))
		if title != "" {
			b.WriteString(" (")
			b.WriteString(title)
			b.WriteString(")")
		}
		b.WriteString(" ")
		b.WriteString(item.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

const searchQuerySystemPrompt = `You convert research material into a single literature search query.
Return only the query text, 3 to 12 words, no quotes, no explanation.`

func buildSearchQueryPrompt(content, analysisGoal string) string {
	excerpt := content
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}
	var b strings.Builder
	b.WriteString("Produce one literature search query for related work.\n")
	if analysisGoal != "" {
		b.WriteString("Analysis goal: ")
		b.WriteString(analysisGoal)
		b.WriteString("\n")
	}
	b.WriteString("Material:\n")
	b.WriteString(excerpt)
	return b.String()
}

const paperRelevanceSystemPrompt = `You score how relevant a candidate paper is to a research goal.
Respond with a single JSON object: {"relevance_score": float 0..1, "coverage_aspects": [strings]}.
No other text.`

func buildPaperRelevancePrompt(goal, query string, candidate domain.PaperCandidate) string {
	abstract := candidate.Abstract
	if len(abstract) > 1200 {
		abstract = abstract[:1200]
	}
	return fmt.Sprintf(
		"Research goal: %s\nSearch query: %s\n\nCandidate paper:\nTitle: %s\nAbstract: %s",
		goal, query, candidate.Title, abstract,
	)
}

const summarySystemPrompt = `You write terse two-sentence summaries of scientific documents. Return only the summary.`

func buildSummaryPrompt(title, text string) string {
	excerpt := text
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	return fmt.Sprintf("Summarize the document %q in two sentences.\n\n%s", title, excerpt)
}
