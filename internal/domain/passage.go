package domain

// Passage is a retrievable text unit with metadata. Content is immutable once
// stored; metadata may be merge-updated.
type Passage struct {
	ID          string
	Title       string
	Description string
	Content     string
	Metadata    map[string]any
	Embedding   []float32 // optional, fixed dimension when present
}

// Method is the retrieval method that produced a result.
type Method string

const (
	// MethodVector is dense (embedding) retrieval.
	MethodVector Method = "vector"
	// MethodLexical is sparse (keyword) retrieval.
	MethodLexical Method = "lexical"
	// MethodHybrid marks a result found by both methods after fusion.
	MethodHybrid Method = "hybrid"
)

// Provenance records which sub-query and method produced a result.
type Provenance struct {
	SubQuery string
	Method   Method
}

// RetrievalResult is a ranked passage with a normalized 0..1 score
// (higher is more relevant) and full provenance.
type RetrievalResult struct {
	Passage    Passage
	Score      float64
	Provenance []Provenance
}

// Method derives the overall retrieval method from provenance: hybrid when
// both dense and sparse retrieval found the passage.
func (r RetrievalResult) Method() Method {
	var vector, lexical bool
	for _, p := range r.Provenance {
		switch p.Method {
		case MethodVector:
			vector = true
		case MethodLexical:
			lexical = true
		}
	}
	switch {
	case vector && lexical:
		return MethodHybrid
	case lexical:
		return MethodLexical
	default:
		return MethodVector
	}
}
