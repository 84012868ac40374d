// Package models holds the canonical entities of the medallion store:
// Bronze (RawEvent), Silver (EventFact and the projected domain entities)
// and Gold (Report, ReportCoverage, ReportReview).
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StreamKind enumerates the ingestion streams a repository is pulled
// through, in the fixed order the Ingestion Worker processes them.
type StreamKind string

const (
	StreamCommits      StreamKind = "commits"
	StreamPullRequests StreamKind = "pull_requests"
	StreamIssues       StreamKind = "issues"
	StreamDocChanges   StreamKind = "doc_changes"
)

// StreamOrder is the fixed processing order required by spec §4.D.
var StreamOrder = []StreamKind{StreamCommits, StreamPullRequests, StreamIssues, StreamDocChanges}

// EventType enumerates the raw event kinds the Entity Projector recognises.
type EventType string

const (
	EventTypeCommit     EventType = "commit"
	EventTypePullRequest EventType = "pull_request"
	EventTypeIssue       EventType = "issue"
	EventTypeDocChange   EventType = "doc_change"
)

// ProcessingState records whether a raw event has been projected, and
// whether projection failed with drift.
type ProcessingState string

const (
	ProcessingPending        ProcessingState = "pending"
	ProcessingProcessed      ProcessingState = "processed"
	ProcessingFailedDrift    ProcessingState = "processed_failed"
)

// RawEvent is a Bronze row: an immutable, deduplicated source payload.
type RawEvent struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	SourceSystem   string          `db:"source_system" json:"sourceSystem"`
	EventType      EventType       `db:"event_type" json:"eventType"`
	SourceEventID  *string         `db:"source_event_id" json:"sourceEventId,omitempty"`
	RepoExternalID *string         `db:"repo_external_id" json:"repoExternalId,omitempty"`
	OccurredAt     time.Time       `db:"occurred_at" json:"occurredAt"`
	IngestedAt     time.Time       `db:"ingested_at" json:"ingestedAt"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	DedupeKey      string          `db:"dedupe_key" json:"dedupeKey"`
	ProcessedAt    *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	State          ProcessingState `db:"state" json:"state"`
	FailureReason  *string         `db:"failure_reason" json:"failureReason,omitempty"`
}

// RawEventEnvelope is the external input shape described in spec §6.
type RawEventEnvelope struct {
	SourceSystem   string      `json:"source_system" validate:"required"`
	EventType      EventType   `json:"event_type" validate:"required"`
	SourceEventID  *string     `json:"source_event_id,omitempty"`
	RepoExternalID *string     `json:"repo_external_id,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at" validate:"required"`
	Payload        interface{} `json:"payload"`
}

// EventFact is the Silver staging row recording that a raw event has been
// projected, holding the deterministic normalised projection.
type EventFact struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	RawEventID        uuid.UUID       `db:"raw_event_id" json:"rawEventId"`
	EventType         EventType       `db:"event_type" json:"eventType"`
	RepoExternalID    *string         `db:"repo_external_id" json:"repoExternalId,omitempty"`
	RepositoryID      *uuid.UUID      `db:"repository_id" json:"repositoryId,omitempty"`
	OccurredAt        time.Time       `db:"occurred_at" json:"occurredAt"`
	NormalisedPayload json.RawMessage `db:"normalised_payload" json:"normalisedPayload"`
}

// Repository is the authoritative record of a managed GitHub repository.
type Repository struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	Owner                 string    `db:"owner" json:"owner"`
	Name                  string    `db:"name" json:"name"`
	DefaultBranch         string    `db:"default_branch" json:"defaultBranch"`
	DocumentationPaths    []string  `db:"-" json:"documentationPaths"`
	IngestionEnabled      bool      `db:"ingestion_enabled" json:"ingestionEnabled"`
	CatalogueRepositoryID *string   `db:"catalogue_repository_id" json:"catalogueRepositoryId,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
}

// FullName returns "owner/name", the repo_external_id convention.
func (r Repository) FullName() string { return r.Owner + "/" + r.Name }

// Commit is the canonical projection of a commit event.
type Commit struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RepositoryID uuid.UUID `db:"repository_id" json:"repositoryId"`
	SHA          string    `db:"sha" json:"sha"`
	Message      string    `db:"message" json:"message"`
	Author       string    `db:"author" json:"author,omitempty"`
	AuthoredAt   time.Time `db:"authored_at" json:"authoredAt"`
	Branch       string    `db:"branch" json:"branch,omitempty"`
	Additions    int       `db:"additions" json:"additions,omitempty"`
	Deletions    int       `db:"deletions" json:"deletions,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// PullRequest is the canonical projection of a pull_request event.
type PullRequest struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	RepositoryID uuid.UUID  `db:"repository_id" json:"repositoryId"`
	Number       int        `db:"number" json:"number"`
	Title        string     `db:"title" json:"title"`
	State        string     `db:"state" json:"state"`
	Author       string     `db:"author" json:"author,omitempty"`
	Labels       []string   `db:"-" json:"labels,omitempty"`
	MergedAt     *time.Time `db:"merged_at" json:"mergedAt,omitempty"`
	ClosedAt     *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	UpdatedAtSrc time.Time  `db:"updated_at_src" json:"updatedAtSource"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// Issue is the canonical projection of an issue event.
type Issue struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	RepositoryID uuid.UUID  `db:"repository_id" json:"repositoryId"`
	Number       int        `db:"number" json:"number"`
	Title        string     `db:"title" json:"title"`
	State        string     `db:"state" json:"state"`
	Author       string     `db:"author" json:"author,omitempty"`
	Labels       []string   `db:"-" json:"labels,omitempty"`
	ClosedAt     *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	UpdatedAtSrc time.Time  `db:"updated_at_src" json:"updatedAtSource"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// DocumentationChange is the canonical projection of a doc_change event,
// deduplicated on (repo_id, commit_sha, path).
type DocumentationChange struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RepositoryID uuid.UUID `db:"repository_id" json:"repositoryId"`
	CommitSHA    string    `db:"commit_sha" json:"commitSha"`
	Path         string    `db:"path" json:"path"`
	ChangeType   string    `db:"change_type" json:"changeType,omitempty"`
	OccurredAt   time.Time `db:"occurred_at" json:"occurredAt"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// IngestionOffset tracks the per-(repository, stream) watermark and opaque
// pagination cursor used by the Ingestion Worker.
type IngestionOffset struct {
	RepositoryID uuid.UUID  `db:"repository_id" json:"repositoryId"`
	StreamKind   StreamKind `db:"stream_kind" json:"streamKind"`
	Watermark    time.Time  `db:"watermark" json:"watermark"`
	Cursor       *string    `db:"cursor" json:"cursor,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// ReportScope enumerates the scopes a report can be generated at.
type ReportScope string

const (
	ScopeRepository ReportScope = "repository"
	ScopeProject    ReportScope = "project"
	ScopeEstate     ReportScope = "estate"
)

// ReportStatus enumerates the StatusSummary.status enumeration.
type ReportStatus string

const (
	StatusOnTrack ReportStatus = "on_track"
	StatusAtRisk  ReportStatus = "at_risk"
	StatusBlocked ReportStatus = "blocked"
	StatusUnknown ReportStatus = "unknown"
)

// Report is a Gold row: persisted report metadata and narrative.
type Report struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Scope             ReportScope     `db:"scope" json:"scope"`
	RepositoryID      *uuid.UUID      `db:"repository_id" json:"repositoryId,omitempty"`
	ProjectID         *uuid.UUID      `db:"project_id" json:"projectId,omitempty"`
	WindowStart       time.Time       `db:"window_start" json:"windowStart"`
	WindowEnd         time.Time       `db:"window_end" json:"windowEnd"`
	Model             string          `db:"model" json:"model"`
	Status            ReportStatus    `db:"status" json:"status"`
	HumanText         string          `db:"human_text" json:"humanText"`
	MachineSummary    json.RawMessage `db:"machine_summary" json:"machineSummary"`
	ModelLatencyMs    *int64          `db:"model_latency_ms" json:"modelLatencyMs,omitempty"`
	PromptTokens      *int            `db:"prompt_tokens" json:"promptTokens,omitempty"`
	CompletionTokens  *int            `db:"completion_tokens" json:"completionTokens,omitempty"`
	TotalTokens       *int            `db:"total_tokens" json:"totalTokens,omitempty"`
	GeneratedAt       time.Time       `db:"generated_at" json:"generatedAt"`
}

// ReportCoverage links an EventFact to the report that consumed it.
type ReportCoverage struct {
	ReportID    uuid.UUID `db:"report_id" json:"reportId"`
	EventFactID uuid.UUID `db:"event_fact_id" json:"eventFactId"`
}

// ReviewState enumerates ReportReview.state.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewResolved ReviewState = "resolved"
)

// ReviewIssue is one validation failure recorded on a ReportReview.
type ReviewIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReportReview captures a reporting run that failed validation after
// exhausting retries.
type ReportReview struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	RepositoryID uuid.UUID     `db:"repository_id" json:"repositoryId"`
	WindowStart  time.Time     `db:"window_start" json:"windowStart"`
	WindowEnd    time.Time     `db:"window_end" json:"windowEnd"`
	Attempts     int           `db:"attempts" json:"attempts"`
	Issues       []ReviewIssue `db:"-" json:"issues"`
	State        ReviewState   `db:"state" json:"state"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// Usage captures token accounting returned by a status model backend.
type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`
}

// StatusSummary is the structured output of a Status Model invocation.
type StatusSummary struct {
	Status      ReportStatus `json:"status"`
	SummaryText string       `json:"summaryText"`
	Highlights  []string     `json:"highlights,omitempty"`
	Risks       []string     `json:"risks,omitempty"`
	NextSteps   []string     `json:"nextSteps,omitempty"`
	Usage       *Usage       `json:"usage,omitempty"`
}
