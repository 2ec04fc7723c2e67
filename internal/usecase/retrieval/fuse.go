package retrieval

import (
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Fuse merges raw fan-out results into one ranking. Duplicates are detected
// by content identity, not id, so the same passage surfaced under different
// sub-queries collapses into a single entry carrying all its provenance.
//
// A passage found by only one method keeps its best score from that method.
// A passage found by both gets the average of its best vector and best
// lexical scores; both scales are 0..1 higher-is-better, so the average is
// meaningful.
func Fuse(raw []domain.RetrievalResult, maxPassages int) []domain.RetrievalResult {
	type entry struct {
		result      domain.RetrievalResult
		bestVector  float64
		bestLexical float64
		hasVector   bool
		hasLexical  bool
		order       int
	}

	byContent := make(map[string]*entry)
	var keys []string

	for _, r := range raw {
		key := contentKey(r.Passage)
		e, ok := byContent[key]
		if !ok {
			e = &entry{result: r, order: len(keys)}
			e.result.Provenance = nil
			byContent[key] = e
			keys = append(keys, key)
		}
		e.result.Provenance = append(e.result.Provenance, r.Provenance...)

		for _, prov := range r.Provenance {
			switch prov.Method {
			case domain.MethodVector:
				if !e.hasVector || r.Score > e.bestVector {
					e.bestVector = r.Score
					e.hasVector = true
				}
			case domain.MethodLexical:
				if !e.hasLexical || r.Score > e.bestLexical {
					e.bestLexical = r.Score
					e.hasLexical = true
				}
			}
		}
	}

	fused := make([]domain.RetrievalResult, 0, len(keys))
	for _, key := range keys {
		e := byContent[key]
		switch {
		case e.hasVector && e.hasLexical:
			e.result.Score = (e.bestVector + e.bestLexical) / 2
		case e.hasVector:
			e.result.Score = e.bestVector
		case e.hasLexical:
			e.result.Score = e.bestLexical
		}
		fused = append(fused, e.result)
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if maxPassages > 0 && len(fused) > maxPassages {
		fused = fused[:maxPassages]
	}
	return fused
}

// contentKey identifies a passage by what the reader would actually see.
// Distinct ids with identical text are duplicates.
func contentKey(p domain.Passage) string {
	return p.Title + "\x00" + p.Content
}
