package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarlab/research-assistant/internal/core/domain"
)

var experimentalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\s*(mg/kg|μm|nm|mm|cm)`),
	regexp.MustCompile(`n\s*=\s*\d+`),
	regexp.MustCompile(`p\s*[<>=]\s*0\.\d+`),
	regexp.MustCompile(`\d+\s*(days?|hours?|weeks?)`),
	regexp.MustCompile(`(ic50|ec50|ld50)`),
	regexp.MustCompile(`(control|treatment|placebo)`),
}

var (
	preprintPattern = regexp.MustCompile(`(preprint|biorxiv|medrxiv|arxiv)`)
	reviewPattern   = regexp.MustCompile(`(review|systematic|meta-analysis)`)
)

var methodKeywords = []string{
	"western blot", "pcr", "elisa", "immunofluorescence",
	"rna-seq", "microarray", "qrt-pcr", "flow cytometry",
}

const reliabilityAgeCutoffYears = 5

// assessReliability scores how trustworthy a candidate paper looks from its
// title and abstract alone: concrete experimental detail and review status
// raise the score, preprint venues and age lower it. The score is clamped
// to [0,1] and flags explain the penalties.
func assessReliability(candidate domain.PaperCandidate, currentYear int) (float64, []string) {
	text := strings.ToLower(candidate.Title + " " + candidate.Abstract)

	score := 0.5
	var flags []string

	hits := 0
	for _, p := range experimentalPatterns {
		if p.MatchString(text) {
			hits++
		}
	}
	switch {
	case hits >= 3:
		score += 0.3
	case hits >= 1:
		score += 0.1
	default:
		flags = append(flags, "limited_experimental_data")
	}

	if preprintPattern.MatchString(text) {
		score -= 0.2
		flags = append(flags, "preprint")
	}
	if reviewPattern.MatchString(text) {
		score += 0.2
	}

	methods := 0
	for _, kw := range methodKeywords {
		if strings.Contains(text, kw) {
			methods++
		}
	}
	bonus := 0.05 * float64(methods)
	if bonus > 0.2 {
		bonus = 0.2
	}
	score += bonus

	if year, ok := publicationYear(candidate.PublishedDate); ok {
		if currentYear-year > reliabilityAgeCutoffYears {
			score -= 0.1
			flags = append(flags, "older_publication")
		}
	}

	return clamp01(score), flags
}

func publicationYear(published string) (int, bool) {
	if len(published) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(published[:4])
	if err != nil {
		return 0, false
	}
	return year, true
}
