package domain

// Document is one contiguous block of corpus text. Documents are built once
// at startup and never mutated; the id is the document's position in the
// corpus file and is stable for the process lifetime.
type Document struct {
	ID   int
	Text string
}
