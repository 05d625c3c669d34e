package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an optimistic project update loses a
// race with a concurrent writer.
var ErrVersionConflict = errors.New("version conflict")

// Project is one life-story interview owned by a single user.
type Project struct {
	ID           string
	Title        string
	CurrentPhase string
	AgeBracket   string // empty until selected
	ChapterNames string // JSON object phase->label, "" when no overrides
	Status       string // "draft", "in_progress", "completed"
	Version      int
	CreatedAt    time.Time
}

// Message is one entry of a project's ordered conversation log.
type Message struct {
	ID           string
	ProjectID    string
	Role         string // "user" or "assistant"
	Content      string
	PhaseContext string // phase the message was collected in
	CreatedAt    time.Time
	Seq          int64 // assigned by the store, strictly increasing per project
}

// Snippet is one generated highlight card.
type Snippet struct {
	ID           string
	ProjectID    string
	Title        string
	Content      string
	Phase        string
	Theme        string
	DisplayOrder int
	IsLocked     bool
	IsActive     bool
	CreatedAt    time.Time
}
