package http

import "github.com/fablesmithlabs/draftd/internal/compose"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// CreateStoryRequest is the request body for POST /api/v1/stories.
type CreateStoryRequest struct {
	Title   string `json:"title"`
	Premise string `json:"premise"`
}

// FinalizeRequest is the request body for POST .../chapters/:n/finalize. The
// title is optional.
type FinalizeRequest struct {
	Title string `json:"title"`
}

// ProgressRequest is the request body for PATCH .../compose/progress. Nil
// counters are left untouched.
type ProgressRequest struct {
	Phase          string `json:"phase"`
	CompletedItems *int   `json:"completedItems"`
	TotalItems     *int   `json:"totalItems"`
}

// OutlineRequest is the request body for PUT .../compose/outline.
type OutlineRequest struct {
	Structure    []string `json:"structure"`
	DraftSummary string   `json:"draftSummary"`
}

// DraftRequest is the request body for PUT .../compose/draft.
type DraftRequest struct {
	Content string `json:"content"`
}

// CharacterRequest is the request body for POST .../assistants/character.
// Phase defaults to the workflow's current phase; BranchID defaults to the
// conversation's current branch.
type CharacterRequest struct {
	Character string `json:"character"`
	Message   string `json:"message"`
	Phase     string `json:"phase,omitempty"`
	BranchID  string `json:"branchId,omitempty"`
}

// ToneRequest is the request body for POST .../assistants/tone. Content is
// optional; when empty the current chapter draft is assessed.
type ToneRequest struct {
	Content string `json:"content"`
}

// TransitionResponse reports a completed phase transition.
type TransitionResponse struct {
	Transitioned bool                     `json:"transitioned"`
	Phase        compose.Phase            `json:"phase"`
	Validation   compose.ValidationResult `json:"validation"`
}

// RejectionResponse reports a transition the validation gate refused. The
// workflow is unchanged.
type RejectionResponse struct {
	Error      string                   `json:"error"`
	Phase      compose.Phase            `json:"phase"`
	Validation compose.ValidationResult `json:"validation"`
}

// ReviewsResponse carries the editorial reviews generated for a draft.
type ReviewsResponse struct {
	Reviews []compose.Review `json:"reviews"`
}
