package tm

import (
	"hash/fnv"
	"math"
	"strings"
)

// Dimensions is the length of the trigram vectors.
const Dimensions = 256

// Vector maps text onto a normalized bag of hashed character trigrams.
// Texts with a high cosine similarity share most of their trigrams.
func Vector(text string) []float32 {
	v := make([]float32, Dimensions)
	runes := []rune(" " + strings.ToLower(text) + " ")
	if len(runes) < 3 {
		return v
	}
	h := fnv.New32a()
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		h.Write([]byte(string(runes[i : i+3])))
		v[h.Sum32()%Dimensions]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Similarity scores a against b in [0,1]. Only identical texts score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return capFuzzy(cosine(Vector(a), Vector(b)))
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// capFuzzy keeps a non-identical match below the exact score.
func capFuzzy(s float64) float64 {
	switch {
	case s >= 1:
		return 0.99
	case s < 0:
		return 0
	}
	return s
}
