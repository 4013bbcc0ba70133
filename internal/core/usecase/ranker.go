package usecase

import (
	"math"
	"sort"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

const (
	cutoffFloor        = 0.6
	smallPoolThreshold = 0.7
	maxAcceptedPapers  = 10
	maxSelectedPapers  = 8
	abstractVectorCap  = 500
)

// CandidateRanker selects a final paper set from a scored pool: an adaptive
// score cutoff trims the weak tail, then maximal-marginal-relevance picks a
// diverse subset of what survived.
type CandidateRanker struct {
	Lambda float64
}

func NewCandidateRanker(lambda float64) *CandidateRanker {
	if lambda <= 0 || lambda > 1 {
		lambda = 0.7
	}
	return &CandidateRanker{Lambda: lambda}
}

// adaptiveCutoff finds the largest relative drop between consecutive sorted
// scores and cuts there, never below the floor. Pools with fewer than three
// scores are too small for elbow detection and keep everything above a
// fixed threshold.
func adaptiveCutoff(scores []float64) (float64, int) {
	if len(scores) < 3 {
		count := 0
		for _, s := range scores {
			if s >= smallPoolThreshold {
				count++
			}
		}
		return smallPoolThreshold, count
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	bestDrop := 0.0
	cutIndex := len(sorted)
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i] <= 0 {
			break
		}
		drop := (sorted[i] - sorted[i+1]) / sorted[i]
		if drop > bestDrop {
			bestDrop = drop
			cutIndex = i + 1
		}
	}

	threshold := cutoffFloor
	if cutIndex < len(sorted) && sorted[cutIndex-1] > cutoffFloor {
		// Everything above the elbow stays, but the effective threshold
		// never drops below the floor.
		threshold = math.Max(cutoffFloor, sorted[cutIndex])
	}

	count := 0
	for _, s := range sorted {
		if s >= threshold {
			count++
		}
	}
	if count > maxAcceptedPapers {
		count = maxAcceptedPapers
	}
	return threshold, count
}

// Select applies the adaptive cutoff to the pool's relevance scores, then
// picks up to min(8, maxResults) papers by maximal marginal relevance over
// term-frequency vectors of title plus leading abstract. When the texts are
// too degenerate to vectorize, selection falls back to plain relevance
// order.
func (r *CandidateRanker) Select(pool []domain.PaperCandidate, maxResults int) []domain.PaperCandidate {
	if len(pool) == 0 {
		return nil
	}

	scores := make([]float64, len(pool))
	for i, p := range pool {
		scores[i] = p.RelevanceScore
	}
	threshold, count := adaptiveCutoff(scores)

	accepted := make([]domain.PaperCandidate, 0, len(pool))
	for _, p := range pool {
		if p.RelevanceScore >= threshold {
			accepted = append(accepted, p)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].RelevanceScore > accepted[j].RelevanceScore
	})
	if len(accepted) > count {
		accepted = accepted[:count]
	}
	if len(accepted) == 0 {
		return nil
	}

	limit := maxSelectedPapers
	if maxResults > 0 && maxResults < limit {
		limit = maxResults
	}
	if len(accepted) <= limit {
		return accepted
	}

	vectors := termFrequencyVectors(accepted)
	if vectors == nil {
		return accepted[:limit]
	}
	return mmrSelect(accepted, vectors, limit, r.Lambda)
}

func mmrSelect(
	pool []domain.PaperCandidate,
	vectors []map[string]float64,
	limit int,
	lambda float64,
) []domain.PaperCandidate {
	selected := make([]domain.PaperCandidate, 0, limit)
	selectedVecs := make([]map[string]float64, 0, limit)
	remaining := make([]int, len(pool))
	for i := range pool {
		remaining[i] = i
	}

	// Seed with the highest-relevance candidate; pool is already sorted so
	// ties resolve to the earlier entry.
	selected = append(selected, pool[0])
	selectedVecs = append(selectedVecs, vectors[0])
	remaining = remaining[1:]

	for len(selected) < limit && len(remaining) > 0 {
		bestPos := 0
		bestScore := math.Inf(-1)
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sv := range selectedVecs {
				if sim := cosineTF(vectors[idx], sv); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*pool[idx].RelevanceScore + (1-lambda)*(1-maxSim)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		idx := remaining[bestPos]
		selected = append(selected, pool[idx])
		selectedVecs = append(selectedVecs, vectors[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}

// termFrequencyVectors builds one TF vector per candidate from its title and
// the first part of its abstract. Returns nil when every vector is empty.
func termFrequencyVectors(pool []domain.PaperCandidate) []map[string]float64 {
	vectors := make([]map[string]float64, len(pool))
	nonEmpty := false
	for i, p := range pool {
		abstract := p.Abstract
		if len(abstract) > abstractVectorCap {
			abstract = abstract[:abstractVectorCap]
		}
		vec := make(map[string]float64)
		for _, tok := range splitAlphaNumLower(p.Title + " " + abstract) {
			vec[tok]++
		}
		vectors[i] = vec
		if len(vec) > 0 {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return nil
	}
	return vectors
}

func cosineTF(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
