package model

import "time"

// Candidate is a raw (term, value, page, evidence, confidence) tuple proposed
// by the extraction model. Transient; validated and canonicalized before it
// becomes a Result, never persisted as-is.
type Candidate struct {
	Page       int
	Term       string
	Value      string
	Evidence   string
	Confidence int
}

// Result is one finalized, canonicalized financial data point.
// Invariants: Page in [1, pages of the document], Confidence in [0,100],
// Value contains only digits, '.' and ','. Immutable once persisted.
type Result struct {
	ID           string
	JobID        string
	DocID        string
	DocName      string
	Page         int
	OriginalTerm string
	Canonical    string
	Value        string
	Confidence   int
	Evidence     string
	CreatedAt    time.Time
}
