package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	minTokenRunes        = 2
	minDocumentFrequency = 2
)

var (
	ErrEmptyVocabulary  = errors.New("empty vocabulary: no term occurs in enough documents")
	ErrTooFewDocuments  = errors.New("fewer documents than the minimum document frequency")
	errVectorizerNotFit = errors.New("vectorizer has not been fit")
)

// Vector is a sparse, L2-normalized tf-idf vector with ascending term indices
type Vector struct {
	Indices []int
	Values  []float64
}

// Vectorizer turns texts into tf-idf vectors over a vocabulary of terms that
// occur in at least MinDF documents. A Vectorizer is fit once per language
// partition and discarded with it.
type Vectorizer struct {
	MinDF int

	vocabulary map[string]int
	idf        []float64
}

// NewVectorizer creates a vectorizer with the given minimum document frequency
func NewVectorizer(minDF int) *Vectorizer {
	return &Vectorizer{MinDF: minDF}
}

// Fit learns the vocabulary and smoothed inverse document frequencies
func (v *Vectorizer) Fit(docs []string) error {
	if len(docs) < v.MinDF {
		return fmt.Errorf("%w: %d documents, min_df %d", ErrTooFewDocuments, len(docs), v.MinDF)
	}

	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range tokenize(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= v.MinDF {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return ErrEmptyVocabulary
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return nil
}

// Transform vectorizes texts with the fitted vocabulary.
// Texts without any vocabulary term map to the zero vector.
func (v *Vectorizer) Transform(docs []string) ([]Vector, error) {
	if v.vocabulary == nil {
		return nil, errVectorizerNotFit
	}

	vectors := make([]Vector, len(docs))
	for i, doc := range docs {
		counts := make(map[int]float64)
		for _, term := range tokenize(doc) {
			if idx, ok := v.vocabulary[term]; ok {
				counts[idx]++
			}
		}

		indices := make([]int, 0, len(counts))
		for idx := range counts {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		values := make([]float64, len(indices))
		norm := 0.0
		for j, idx := range indices {
			values[j] = counts[idx] * v.idf[idx]
			norm += values[j] * values[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range values {
				values[j] /= norm
			}
		}

		vectors[i] = Vector{Indices: indices, Values: values}
	}
	return vectors, nil
}

// FitTransform fits the vocabulary on docs and vectorizes them
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs)
}

// tokenize lowercases text and splits it into runs of letters, digits and
// underscores, dropping single-rune tokens
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// euclidean returns the distance between two sparse vectors
func euclidean(a, b Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			d := a.Values[i] - b.Values[j]
			sum += d * d
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			sum += a.Values[i] * a.Values[i]
			i++
		default:
			sum += b.Values[j] * b.Values[j]
			j++
		}
	}
	for ; i < len(a.Indices); i++ {
		sum += a.Values[i] * a.Values[i]
	}
	for ; j < len(b.Indices); j++ {
		sum += b.Values[j] * b.Values[j]
	}
	return math.Sqrt(sum)
}

// pairwiseDistances returns the full symmetric euclidean distance matrix
func pairwiseDistances(vectors []Vector) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// meanDistance averages the full pairwise distance matrix, diagonal included
func meanDistance(vectors []Vector) float64 {
	n := len(vectors)
	if n == 0 {
		return 0
	}
	total := 0.0
	for _, row := range pairwiseDistances(vectors) {
		for _, d := range row {
			total += d
		}
	}
	return total / float64(n*n)
}
