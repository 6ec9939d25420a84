package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kvolkov/docsense/internal/core/domain"
)

const (
	defaultTopK   = 3
	tfSaturationK = 1.2
	filenameBoost = 1.5
)

// Search ranks the collection against the query with lexical TF-IDF
// scoring. Documents sharing no token with the query are excluded; ties
// break to the most recently created document. The ranking is fully
// deterministic for a fixed store state.
func (s *Store) Search(_ context.Context, query string, topK int) ([]domain.ScoredDocument, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	terms := tokenizeAlphaNum(query)
	if len(terms) == 0 {
		return []domain.ScoredDocument{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.snap.Documents)
	if n == 0 {
		return []domain.ScoredDocument{}, nil
	}

	// Unique query terms in sorted order, so score summation visits
	// addends identically on every call, and per-term document frequency.
	uniq := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		uniq[t] = struct{}{}
	}
	queryTerms := make([]string, 0, len(uniq))
	for t := range uniq {
		queryTerms = append(queryTerms, t)
	}
	sort.Strings(queryTerms)
	docTokens := make([]map[string]int, n)
	nameTokens := make([]map[string]struct{}, n)
	df := make(map[string]int, len(uniq))
	for i := range s.snap.Documents {
		counts := make(map[string]int)
		for _, t := range tokenizeAlphaNum(s.snap.Documents[i].ExtractedText) {
			counts[t]++
		}
		docTokens[i] = counts
		names := make(map[string]struct{})
		for _, t := range tokenizeAlphaNum(s.snap.Documents[i].Filename) {
			names[t] = struct{}{}
		}
		nameTokens[i] = names
		for _, t := range queryTerms {
			if _, ok := counts[t]; ok {
				df[t]++
				continue
			}
			if _, ok := names[t]; ok {
				df[t]++
			}
		}
	}

	scored := make([]domain.ScoredDocument, 0, n)
	for i := range s.snap.Documents {
		score := 0.0
		for _, t := range queryTerms {
			tf := float64(docTokens[i][t])
			if _, ok := nameTokens[i][t]; ok {
				if tf == 0 {
					tf = 1
				}
				tf *= filenameBoost
			}
			if tf == 0 {
				continue
			}
			sat := tf * (tfSaturationK + 1) / (tf + tfSaturationK)
			idf := math.Log(1 + (float64(n)-float64(df[t])+0.5)/(float64(df[t])+0.5))
			score += sat * idf
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.ScoredDocument{
			Document: s.snap.Documents[i],
			Score:    score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].CreatedAt.Equal(scored[j].CreatedAt) {
			return scored[i].CreatedAt.After(scored[j].CreatedAt)
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// tokenizeAlphaNum lowercases the input and splits it into maximal runs
// of letters and digits.
func tokenizeAlphaNum(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
