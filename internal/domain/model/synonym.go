package model

import "time"

// Synonym maps a raw term spelling (matched case-insensitively) to the
// canonical field name it should resolve to.
type Synonym struct {
	ID        string
	Term      string
	Canonical string
	CreatedAt time.Time
}
