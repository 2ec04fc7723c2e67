package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 1},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineDistance = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCosineDistance_ScaleInvariant(t *testing.T) {
	a := []float32{3, 4}
	b := []float32{6, 8}
	if d := CosineDistance(a, b); math.Abs(d) > 1e-6 {
		t.Errorf("parallel vectors must have distance 0, got %f", d)
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	cases := []struct {
		distance, want float64
	}{
		{0, 1},    // identical
		{1, 0.5},  // orthogonal
		{2, 0},    // opposite
		{-0.5, 1}, // clamped above
		{2.5, 0},  // clamped below
	}

	for _, tc := range cases {
		got := SimilarityFromDistance(tc.distance)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("SimilarityFromDistance(%f) = %f, want %f", tc.distance, got, tc.want)
		}
	}
}

func TestSimilarity_Monotonic(t *testing.T) {
	query := []float32{1, 0}
	closer := []float32{0.9, 0.1}
	farther := []float32{0.1, 0.9}

	if Similarity(query, closer) <= Similarity(query, farther) {
		t.Error("similarity must increase as angle shrinks")
	}
}

func TestRetrievalResult_Method(t *testing.T) {
	both := RetrievalResult{Provenance: []Provenance{
		{Method: MethodVector}, {Method: MethodLexical},
	}}
	if both.Method() != MethodHybrid {
		t.Errorf("both methods = %s, want hybrid", both.Method())
	}

	lex := RetrievalResult{Provenance: []Provenance{{Method: MethodLexical}}}
	if lex.Method() != MethodLexical {
		t.Errorf("lexical only = %s", lex.Method())
	}

	vec := RetrievalResult{Provenance: []Provenance{{Method: MethodVector}}}
	if vec.Method() != MethodVector {
		t.Errorf("vector only = %s", vec.Method())
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrProviderBusy) || !Retryable(ErrProviderTimeout) {
		t.Error("busy and timeout must be retryable")
	}
	for _, err := range []error{ErrProviderAuth, ErrProviderNetwork, ErrUnsupportedProvider, ErrValidation} {
		if Retryable(err) {
			t.Errorf("%v must not be retryable", err)
		}
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	err := NewProviderError("deepseek", ErrProviderAuth, "check your API key")

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatal("expected ProviderError")
	}
	if pe.Vendor != "deepseek" {
		t.Errorf("vendor %q", pe.Vendor)
	}
	if !errors.Is(err, ErrProviderAuth) {
		t.Error("wrapped sentinel must survive Unwrap")
	}
}
