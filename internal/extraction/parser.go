package extraction

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"invoice-ai-extraction/internal/domain/model"
)

const (
	maxEvidenceLen    = 200
	defaultConfidence = 90
)

var nonValueChars = regexp.MustCompile(`[^0-9.,]`)

// ParseCandidates decodes a model response of unknown shape into a list of
// candidates. The payload is provider-controlled and untrusted: it may be a
// bare JSON array, an object wrapping the array under some key, or a single
// candidate object. Total mismatch yields an empty list, never an error.
//
// Shape rules, in order:
//  1. bare array
//  2. object with a "results" array
//  3. object that is itself a single term/value-bearing candidate
//  4. object whose first array-valued key (sorted for determinism) is used
func ParseCandidates(raw []byte, totalPages int) []model.Candidate {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	items := matchShape(decoded)
	out := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c, ok := cleanCandidate(obj, totalPages)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchShape(decoded any) []any {
	switch v := decoded.(type) {
	case []any:
		return v
	case map[string]any:
		if arr, ok := v["results"].([]any); ok {
			return arr
		}
		if hasCandidateFields(v) {
			return []any{v}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

func hasCandidateFields(obj map[string]any) bool {
	return asString(obj["term"]) != "" && asString(obj["value"]) != ""
}

// cleanCandidate validates and clamps one raw candidate. Candidates missing
// either term or value are discarded; everything else is coerced into range.
func cleanCandidate(obj map[string]any, totalPages int) (model.Candidate, bool) {
	term := strings.TrimSpace(asString(obj["term"]))
	value := strings.TrimSpace(nonValueChars.ReplaceAllString(asString(obj["value"]), ""))
	if term == "" || value == "" {
		return model.Candidate{}, false
	}

	page := asInt(obj["page"], 1)
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	evidence := strings.TrimSpace(asString(obj["evidence"]))
	if len(evidence) > maxEvidenceLen {
		// Back off to a rune boundary so the cut never emits invalid UTF-8.
		cut := maxEvidenceLen
		for cut > 0 && !utf8.RuneStart(evidence[cut]) {
			cut--
		}
		evidence = evidence[:cut]
	}

	confidence := asInt(obj["confidence"], defaultConfidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return model.Candidate{
		Page:       page,
		Term:       term,
		Value:      value,
		Evidence:   evidence,
		Confidence: confidence,
	}, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asInt(v any, def int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}
