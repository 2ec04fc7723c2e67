package vectorindex

// Filters are metadata predicates ANDed across keys.
type Filters map[string]Condition

type condKind int

const (
	condEquals condKind = iota
	condIn
	condRange
)

// Condition is a single metadata predicate: equality, set membership, or
// numeric range.
type Condition struct {
	kind  condKind
	value any
	set   []any
	rng   Range
}

// Range is a numeric bound set. Nil bounds are unconstrained.
type Range struct {
	GTE *float64
	GT  *float64
	LTE *float64
	LT  *float64
}

// Eq matches metadata values equal to v.
func Eq(v any) Condition { return Condition{kind: condEquals, value: v} }

// In matches metadata values contained in vs.
func In(vs ...any) Condition { return Condition{kind: condIn, set: vs} }

// InRange matches numeric metadata values within r.
func InRange(r Range) Condition { return Condition{kind: condRange, rng: r} }

// Match reports whether metadata satisfies every condition. A missing key
// never matches.
func (f Filters) Match(metadata map[string]any) bool {
	for key, cond := range f {
		v, ok := metadata[key]
		if !ok {
			return false
		}
		if !cond.match(v) {
			return false
		}
	}
	return true
}

func (c Condition) match(v any) bool {
	switch c.kind {
	case condEquals:
		return equalValues(v, c.value)
	case condIn:
		for _, candidate := range c.set {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case condRange:
		n, ok := asFloat(v)
		if !ok {
			return false
		}
		return c.rng.contains(n)
	}
	return false
}

func (r Range) contains(n float64) bool {
	if r.GTE != nil && n < *r.GTE {
		return false
	}
	if r.GT != nil && n <= *r.GT {
		return false
	}
	if r.LTE != nil && n > *r.LTE {
		return false
	}
	if r.LT != nil && n >= *r.LT {
		return false
	}
	return true
}

// equalValues compares with numeric coercion so that a metadata int matches a
// filter float and vice versa (JSON round-trips turn ints into float64).
func equalValues(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
