package domain

import (
	"encoding/json"
	"time"
)

// Term is a single glossary entry. Terms fetched from the server are
// read-only mirrors; the client never edits them in place.
type Term struct {
	ID         int64  `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Category   string `json:"category"`
}

// CustomTerm is a user-authored glossary entry. Its ID is assigned by the
// local store and lives in a separate keyspace from server term IDs, so the
// two never collide at the storage level.
type CustomTerm struct {
	ID         int64     `json:"id"`
	Term       string    `json:"term" validate:"required"`
	Definition string    `json:"definition" validate:"required"`
	Category   string    `json:"category" validate:"required"`
	IsCustom   bool      `json:"isCustom"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Formula is a server-owned calculation formula, cached locally read-only.
// Variables is kept as raw JSON because its shape is owned by the server.
type Formula struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Formula     string          `json:"formula"`
	Description string          `json:"description"`
	Variables   json.RawMessage `json:"variables"`
}

// QuizScore records one completed mock exam. ID is a store-assigned
// surrogate key; two scores recorded in the same millisecond stay distinct.
type QuizScore struct {
	ID        int64     `json:"id"`
	Score     float64   `json:"score" validate:"min=0"`
	Total     float64   `json:"total" validate:"gt=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Setting is a generic key/value row.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StudyIncrement is one committed span of foreground study time.
type StudyIncrement struct {
	Timestamp time.Time
	Elapsed   time.Duration
}
