// Package lexical implements keyword retrieval over the passage corpus. It is
// the cheap complement to vector search in hybrid retrieval: no model calls,
// just term matching over title, description and content.
package lexical

import (
	"context"
	"sort"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// corpus is the passage source searched by the service.
type corpus interface {
	All(ctx context.Context) []domain.Passage
}

// Service scores passages by query term occurrence.
type Service struct {
	corpus corpus
}

// NewService creates a lexical search service over the given corpus.
func NewService(c corpus) *Service {
	return &Service{corpus: c}
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "with": {},
	"i": {}, "me": {}, "my": {}, "do": {}, "can": {}, "you": {},
}

// searchableFields is the number of passage fields a term can match.
const searchableFields = 3

// Terms extracts search terms from a query: lowercased, stopwords removed,
// single characters dropped.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// Search returns the topK passages whose fields contain query terms, best
// first. Passages matching no term are excluded. The score is the fraction of
// possible term-field matches that occurred, so it lands on the same 0..1
// higher-is-better scale as vector similarity.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	terms := Terms(query)
	if len(terms) == 0 || topK <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	var results []domain.RetrievalResult
	for _, p := range s.corpus.All(ctx) {
		score := scorePassage(p, terms)
		if score <= 0 {
			continue
		}
		results = append(results, domain.RetrievalResult{
			Passage: p,
			Score:   score,
			Provenance: []domain.Provenance{
				{SubQuery: query, Method: domain.MethodLexical},
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return results, nil
}

func scorePassage(p domain.Passage, terms []string) float64 {
	title := strings.ToLower(p.Title)
	description := strings.ToLower(p.Description)
	content := strings.ToLower(p.Content)

	matches := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			matches++
		}
		if strings.Contains(description, term) {
			matches++
		}
		if strings.Contains(content, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms)*searchableFields)
}
