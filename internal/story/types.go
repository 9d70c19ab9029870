package story

import (
	"time"

	"github.com/google/uuid"
)

// Story is the top-level authoring project a user composes chapters for.
type Story struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Premise      string    `json:"premise,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ChapterCount int       `json:"chapterCount"`
}

// NewStory creates a story with a fresh ID and no chapters.
func NewStory(title, premise string, now time.Time) *Story {
	return &Story{
		ID:        uuid.NewString(),
		Title:     title,
		Premise:   premise,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Chapter is a finalized chapter: the immutable result of a compose workflow
// that reached the final-edit phase and was approved.
type Chapter struct {
	StoryID        string    `json:"storyId"`
	Number         int       `json:"number"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	WordCount      int       `json:"wordCount"`
	Summary        string    `json:"summary,omitempty"`
	AppliedReviews []string  `json:"appliedReviews,omitempty"`
	FinalizedAt    time.Time `json:"finalizedAt"`
}
