package model

import "time"

// ChatExchange is one question/answer pair kept for audit. Persisting it is
// best-effort: a write failure never fails the answering call.
type ChatExchange struct {
	ID        string
	JobID     string
	Question  string
	Answer    string
	CreatedAt time.Time
}
