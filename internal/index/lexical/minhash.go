package lexical

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"unicode"
)

// minhashSeed fixes the permutation coefficients so that repeated builds
// over the same corpus produce identical signatures.
const minhashSeed = 0x5eed1e55

// permutation holds one universal hash function h(x) = a*x + b (mod 2^64).
type permutation struct {
	a, b uint64
}

// newPermutations derives the signature hash functions deterministically.
func newPermutations(n int) []permutation {
	rng := rand.New(rand.NewSource(minhashSeed))
	perms := make([]permutation, n)
	for i := range perms {
		// Odd multiplier keeps the permutation bijective mod 2^64.
		perms[i] = permutation{a: rng.Uint64() | 1, b: rng.Uint64()}
	}
	return perms
}

// signature computes the MinHash signature of a shingle set.
func signature(shingles []string, perms []permutation) []uint64 {
	sig := make([]uint64, len(perms))
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, s := range shingles {
		x := hash64(s)
		for i, p := range perms {
			if h := p.a*x + p.b; h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// estimateJaccard estimates Jaccard similarity as the fraction of matching
// signature positions.
func estimateJaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// tokenize lowercases text and splits it into words, dropping punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// shingles builds overlapping word n-grams. Inputs shorter than the shingle
// size produce a single shingle of all their words, so short sentences still
// hash to something comparable.
func shingles(words []string, size int) []string {
	if len(words) == 0 {
		return nil
	}
	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}
	out := make([]string, 0, len(words)-size+1)
	for i := 0; i+size <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+size], " "))
	}
	return out
}
