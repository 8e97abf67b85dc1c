package extraction

import (
	"strings"

	"invoice-ai-extraction/internal/domain/model"
)

// Dictionary is a read-only snapshot of the synonym table, keyed by
// lower-cased term. Each job takes one snapshot before processing starts;
// mid-job synonym edits do not affect that job.
type Dictionary map[string]string

func NewDictionary(synonyms []*model.Synonym) Dictionary {
	d := make(Dictionary, len(synonyms))
	for _, s := range synonyms {
		d[strings.ToLower(strings.TrimSpace(s.Term))] = s.Canonical
	}
	return d
}

// Resolve maps a raw term to its canonical field name. Unmapped terms pass
// through unchanged; canonicalization is total and never drops a candidate.
func (d Dictionary) Resolve(term string) string {
	if canonical, ok := d[strings.ToLower(strings.TrimSpace(term))]; ok && canonical != "" {
		return canonical
	}
	return term
}

// Canonicalize turns a validated candidate into a Result, minus persistence
// fields (ID and CreatedAt are assigned by the publisher).
func Canonicalize(c model.Candidate, d Dictionary, jobID, docID, docName string) *model.Result {
	return &model.Result{
		JobID:        jobID,
		DocID:        docID,
		DocName:      docName,
		Page:         c.Page,
		OriginalTerm: c.Term,
		Canonical:    d.Resolve(c.Term),
		Value:        c.Value,
		Confidence:   c.Confidence,
		Evidence:     c.Evidence,
	}
}
