package models

import "time"

// ArtifactTypeContentDraft marks an artifact queued for editorial review.
// Stores route it to the content queue collection when one is configured.
const ArtifactTypeContentDraft = "Content Draft"

// Artifact is a moderated document produced by an agent.
type Artifact struct {
	Name       string    `json:"name" validate:"required"`
	Type       string    `json:"type" validate:"required"`
	Content    string    `json:"content" validate:"required"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Pattern is an observation worth keeping.
type Pattern struct {
	Name         string    `json:"name" validate:"required"`
	Type         string    `json:"type" validate:"required"`
	Description  string    `json:"description" validate:"required"`
	Source       string    `json:"source" validate:"required"`
	Application  string    `json:"application,omitempty"`
	DateCaptured time.Time `json:"dateCaptured"`
}

// Session is a logged work session.
type Session struct {
	Title      string    `json:"title" validate:"required"`
	Mode       string    `json:"mode" validate:"required"`
	Summary    string    `json:"summary" validate:"required"`
	Artifacts  []string  `json:"artifacts,omitempty"`
	OutcomeTag string    `json:"outcomeTag"`
	Date       time.Time `json:"date"`
}

// Knowledge is a system knowledge note.
type Knowledge struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain,omitempty"`
	Summary   string `json:"summary"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// KnowledgeQuery filters knowledge notes by domain.
type KnowledgeQuery struct {
	Domain string
	Limit  int
}

// CreatedRecord identifies a record the store just created.
type CreatedRecord struct {
	ID  string
	URL string
}

// Defaults applied to record fields the caller leaves empty.
const (
	DefaultDepartment     = "Jen_OS"
	DefaultArtifactStatus = "Draft"
	DefaultCreatedBy      = "MCP Server"
	DefaultOutcomeTag     = "LEARN"
	DefaultClaimant       = "mcp-server"
)

// Page size bounds for list operations.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampLimit applies the default page size to zero and bounds the rest to
// 1..MaxLimit.
func ClampLimit(n int) int {
	switch {
	case n == 0:
		return DefaultLimit
	case n < 1:
		return 1
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
