// Package projector implements the Entity Projector (spec component B):
// a deterministic transform from Bronze raw events into canonical Silver
// entities and EventFacts.
package projector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/octostatus/estate-reporter/internal/canonical"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// commitPayload, pullRequestPayload, issuePayload and docChangePayload are
// the recognised wire shapes carried in RawEvent.Payload. Unknown fields are
// ignored; missing required fields fail projection with errs.DataIntegrity.
type commitPayload struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Branch     string `json:"branch"`
	SHA        string `json:"sha"`
	Message    string `json:"message"`
	Author     string `json:"author"`
	AuthoredAt string `json:"authored_at"`
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
}

type pullRequestPayload struct {
	Owner     string   `json:"owner"`
	Repo      string   `json:"repo"`
	Branch    string   `json:"branch"`
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Author    string   `json:"author"`
	Labels    []string `json:"labels"`
	MergedAt  *string  `json:"merged_at"`
	ClosedAt  *string  `json:"closed_at"`
	UpdatedAt string   `json:"updated_at"`
}

type issuePayload struct {
	Owner     string   `json:"owner"`
	Repo      string   `json:"repo"`
	Branch    string   `json:"branch"`
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Author    string   `json:"author"`
	Labels    []string `json:"labels"`
	ClosedAt  *string  `json:"closed_at"`
	UpdatedAt string   `json:"updated_at"`
}

type docChangePayload struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Branch     string `json:"branch"`
	CommitSHA  string `json:"commit_sha"`
	Path       string `json:"path"`
	ChangeType string `json:"change_type"`
	OccurredAt string `json:"occurred_at"`
}

// naturalKey identifies an entity independent of its surrogate id.
type naturalKey struct {
	Owner, Repo, Branch string
	EntityKey           string // sha / "number:N" / "commit_sha:path"
}

// decodePayload unmarshals raw into the shape EventType expects.
func decodePayload(eventType models.EventType, raw json.RawMessage) (interface{}, naturalKey, error) {
	switch eventType {
	case models.EventTypeCommit:
		var p commitPayload
		if err := json.Unmarshal(raw, &p); err != nil || p.SHA == "" || p.Owner == "" || p.Repo == "" {
			return nil, naturalKey{}, errs.Newf(errs.DataIntegrity, "commit payload missing required fields: %v", err)
		}
		return p, naturalKey{Owner: p.Owner, Repo: p.Repo, Branch: p.Branch, EntityKey: p.SHA}, nil
	case models.EventTypePullRequest:
		var p pullRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil || p.Owner == "" || p.Repo == "" || p.Number == 0 {
			return nil, naturalKey{}, errs.Newf(errs.DataIntegrity, "pull_request payload missing required fields: %v", err)
		}
		return p, naturalKey{Owner: p.Owner, Repo: p.Repo, Branch: p.Branch, EntityKey: fmt.Sprintf("number:%d", p.Number)}, nil
	case models.EventTypeIssue:
		var p issuePayload
		if err := json.Unmarshal(raw, &p); err != nil || p.Owner == "" || p.Repo == "" || p.Number == 0 {
			return nil, naturalKey{}, errs.Newf(errs.DataIntegrity, "issue payload missing required fields: %v", err)
		}
		return p, naturalKey{Owner: p.Owner, Repo: p.Repo, Branch: p.Branch, EntityKey: fmt.Sprintf("number:%d", p.Number)}, nil
	case models.EventTypeDocChange:
		var p docChangePayload
		if err := json.Unmarshal(raw, &p); err != nil || p.Owner == "" || p.Repo == "" || p.CommitSHA == "" || p.Path == "" {
			return nil, naturalKey{}, errs.Newf(errs.DataIntegrity, "doc_change payload missing required fields: %v", err)
		}
		return p, naturalKey{Owner: p.Owner, Repo: p.Repo, Branch: p.Branch, EntityKey: p.CommitSHA + ":" + p.Path}, nil
	default:
		return nil, naturalKey{}, errs.Newf(errs.UnsupportedPayloadType, "unrecognised event type %q", eventType)
	}
}

// normalisedProjection computes the deterministic, canonically-encoded
// projection that is persisted as EventFact.NormalisedPayload. Two calls
// with the same payload byte-for-byte produce an identical result, which is
// the determinism guarantee and the input to drift detection.
//
// decodePayload validates the shape and extracts the natural key; the bytes
// themselves are re-decoded into a generic tree and canonically re-encoded
// so field order and whitespace in the source payload never affect the hash.
func normalisedProjection(eventType models.EventType, raw json.RawMessage) (json.RawMessage, naturalKey, error) {
	_, key, err := decodePayload(eventType, raw)
	if err != nil {
		return nil, naturalKey{}, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, naturalKey{}, errs.Wrap(errs.UnsupportedPayloadType, err, "decode event payload")
	}
	encoded, err := canonical.NormaliseAndMarshal(generic)
	if err != nil {
		return nil, naturalKey{}, errs.Wrap(errs.UnsupportedPayloadType, err, "normalise event payload")
	}
	return encoded, key, nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errs.Newf(errs.DataIntegrity, "field %s is not a valid RFC3339 timestamp: %v", field, err)
	}
	return t, nil
}

func parseTimestampPtr(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseTimestamp(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// toCommitInput converts a validated commitPayload into the Store's input shape.
func toCommitInput(p commitPayload) (CommitInput, error) {
	authoredAt, err := parseTimestamp("authored_at", p.AuthoredAt)
	if err != nil {
		return CommitInput{}, err
	}
	return CommitInput{
		SHA: p.SHA, Message: p.Message, Author: p.Author, AuthoredAt: authoredAt,
		Branch: p.Branch, Additions: p.Additions, Deletions: p.Deletions,
	}, nil
}

func toPullRequestInput(p pullRequestPayload) (PullRequestInput, error) {
	updatedAt, err := parseTimestamp("updated_at", p.UpdatedAt)
	if err != nil {
		return PullRequestInput{}, err
	}
	mergedAt, err := parseTimestampPtr("merged_at", p.MergedAt)
	if err != nil {
		return PullRequestInput{}, err
	}
	closedAt, err := parseTimestampPtr("closed_at", p.ClosedAt)
	if err != nil {
		return PullRequestInput{}, err
	}
	return PullRequestInput{
		Number: p.Number, Title: p.Title, State: p.State, Author: p.Author, Labels: p.Labels,
		MergedAt: mergedAt, ClosedAt: closedAt, UpdatedAtSrc: updatedAt,
	}, nil
}

func toIssueInput(p issuePayload) (IssueInput, error) {
	updatedAt, err := parseTimestamp("updated_at", p.UpdatedAt)
	if err != nil {
		return IssueInput{}, err
	}
	closedAt, err := parseTimestampPtr("closed_at", p.ClosedAt)
	if err != nil {
		return IssueInput{}, err
	}
	return IssueInput{
		Number: p.Number, Title: p.Title, State: p.State, Author: p.Author, Labels: p.Labels,
		ClosedAt: closedAt, UpdatedAtSrc: updatedAt,
	}, nil
}

func toDocChangeInput(p docChangePayload) (DocChangeInput, error) {
	occurredAt, err := parseTimestamp("occurred_at", p.OccurredAt)
	if err != nil {
		return DocChangeInput{}, err
	}
	return DocChangeInput{
		CommitSHA: p.CommitSHA, Path: p.Path, ChangeType: p.ChangeType, OccurredAt: occurredAt,
	}, nil
}
