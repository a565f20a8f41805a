package domain

// MatchKind distinguishes how a match was found.
type MatchKind string

const (
	// MatchLexical marks a match found by shingle overlap (MinHash/LSH).
	MatchLexical MatchKind = "lexical"
	// MatchSemantic marks a match found by embedding distance.
	MatchSemantic MatchKind = "semantic"
)

// Match is one correspondence between a query sentence and a corpus document.
// MatchedText always carries the full document text; truncation for display
// is a transport concern.
type Match struct {
	QueryText   string
	MatchedText string
	Similarity  float64 // 0-100
	Kind        MatchKind
	SourceID    int
}
