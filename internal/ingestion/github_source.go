package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// GitHubSource is the production RemoteSource, backed by google/go-github.
// It is rate-limited client-side (golang.org/x/time/rate) on top of the
// library's own secondary-rate-limit handling, and every call to the
// GitHub API is routed through a circuit breaker (sony/gobreaker) so a
// sustained run of 5xxs trips the breaker instead of hammering GitHub.
type GitHubSource struct {
	client  *github.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGitHubSource builds a GitHubSource authenticated with a personal
// access or installation token via golang.org/x/oauth2, rate-limited to
// requestsPerSecond client requests per second.
func NewGitHubSource(ctx context.Context, token string, requestsPerSecond float64) *GitHubSource {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "github-source",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &GitHubSource{
		client:  github.NewClient(httpClient),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		breaker: breaker,
	}
}

func (s *GitHubSource) FetchPage(ctx context.Context, repo models.Repository, stream models.StreamKind, after time.Time, cursor *string, limit int) (Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Page{}, errs.Wrap(errs.Timeout, err, "rate limiter wait")
	}

	page, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetchPage(ctx, repo, stream, after, cursor, limit)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return Page{}, errs.Wrap(errs.Remote5xx, err, "github circuit open")
		}
		return Page{}, err
	}
	return page.(Page), nil
}

func (s *GitHubSource) fetchPage(ctx context.Context, repo models.Repository, stream models.StreamKind, after time.Time, cursor *string, limit int) (Page, error) {
	pageNum := 1
	if cursor != nil {
		if n, err := strconv.Atoi(*cursor); err == nil {
			pageNum = n
		}
	}
	opts := github.ListOptions{Page: pageNum, PerPage: limit}

	switch stream {
	case models.StreamCommits:
		return s.fetchCommits(ctx, repo, after, opts)
	case models.StreamPullRequests:
		return s.fetchPullRequests(ctx, repo, after, opts)
	case models.StreamIssues:
		return s.fetchIssues(ctx, repo, after, opts)
	case models.StreamDocChanges:
		return Page{}, nil
	default:
		return Page{}, errs.Newf(errs.SchemaDrift, "unsupported stream kind %q", stream)
	}
}

func (s *GitHubSource) fetchCommits(ctx context.Context, repo models.Repository, after time.Time, opts github.ListOptions) (Page, error) {
	commits, resp, err := s.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, &github.CommitsListOptions{
		Since:       after,
		SHA:         repo.DefaultBranch,
		ListOptions: opts,
	})
	if err != nil {
		return Page{}, classifyGitHubError(err)
	}

	envelopes := make([]models.RawEventEnvelope, 0, len(commits))
	for _, c := range commits {
		if c.SHA == nil || c.Commit == nil || c.Commit.Author == nil || c.Commit.Author.Date == nil {
			continue
		}
		sourceID := c.GetSHA()
		repoExternalID := repo.FullName()
		envelopes = append(envelopes, models.RawEventEnvelope{
			SourceSystem:   "github",
			EventType:      models.EventTypeCommit,
			SourceEventID:  &sourceID,
			RepoExternalID: &repoExternalID,
			OccurredAt:     c.Commit.Author.Date.Time,
			Payload: map[string]interface{}{
				"owner": repo.Owner, "repo": repo.Name, "branch": repo.DefaultBranch,
				"sha": c.GetSHA(), "message": c.Commit.GetMessage(), "author": c.Commit.Author.GetName(),
				"authored_at": c.Commit.Author.Date.Time.UTC().Format(time.RFC3339Nano),
				"additions":   commitStat(c, "additions"), "deletions": commitStat(c, "deletions"),
			},
		})
	}
	return pageFromResponse(envelopes, resp), nil
}

func commitStat(c *github.RepositoryCommit, field string) int {
	if c.Stats == nil {
		return 0
	}
	switch field {
	case "additions":
		return c.Stats.GetAdditions()
	case "deletions":
		return c.Stats.GetDeletions()
	}
	return 0
}

func (s *GitHubSource) fetchPullRequests(ctx context.Context, repo models.Repository, after time.Time, opts github.ListOptions) (Page, error) {
	prs, resp, err := s.client.PullRequests.List(ctx, repo.Owner, repo.Name, &github.PullRequestListOptions{
		State: "all", Sort: "updated", Direction: "asc", ListOptions: opts,
	})
	if err != nil {
		return Page{}, classifyGitHubError(err)
	}

	envelopes := make([]models.RawEventEnvelope, 0, len(prs))
	for _, pr := range prs {
		if pr.UpdatedAt == nil || pr.UpdatedAt.Before(after) {
			continue
		}
		sourceID := strconv.Itoa(pr.GetNumber())
		repoExternalID := repo.FullName()
		labels := make([]string, 0, len(pr.Labels))
		for _, l := range pr.Labels {
			labels = append(labels, l.GetName())
		}
		payload := map[string]interface{}{
			"owner": repo.Owner, "repo": repo.Name, "branch": repo.DefaultBranch,
			"number": pr.GetNumber(), "title": pr.GetTitle(), "state": pr.GetState(),
			"author": pr.GetUser().GetLogin(), "labels": labels,
			"updated_at": pr.UpdatedAt.Time.UTC().Format(time.RFC3339Nano),
		}
		if pr.MergedAt != nil {
			payload["merged_at"] = pr.MergedAt.Time.UTC().Format(time.RFC3339Nano)
		}
		if pr.ClosedAt != nil {
			payload["closed_at"] = pr.ClosedAt.Time.UTC().Format(time.RFC3339Nano)
		}
		envelopes = append(envelopes, models.RawEventEnvelope{
			SourceSystem: "github", EventType: models.EventTypePullRequest,
			SourceEventID: &sourceID, RepoExternalID: &repoExternalID,
			OccurredAt: pr.UpdatedAt.Time, Payload: payload,
		})
	}
	return pageFromResponse(envelopes, resp), nil
}

func (s *GitHubSource) fetchIssues(ctx context.Context, repo models.Repository, after time.Time, opts github.ListOptions) (Page, error) {
	issues, resp, err := s.client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, &github.IssueListByRepoOptions{
		State: "all", Sort: "updated", Direction: "asc", Since: after, ListOptions: opts,
	})
	if err != nil {
		return Page{}, classifyGitHubError(err)
	}

	envelopes := make([]models.RawEventEnvelope, 0, len(issues))
	for _, iss := range issues {
		if iss.IsPullRequest() || iss.UpdatedAt == nil {
			continue
		}
		sourceID := strconv.Itoa(iss.GetNumber())
		repoExternalID := repo.FullName()
		labels := make([]string, 0, len(iss.Labels))
		for _, l := range iss.Labels {
			labels = append(labels, l.GetName())
		}
		payload := map[string]interface{}{
			"owner": repo.Owner, "repo": repo.Name, "branch": repo.DefaultBranch,
			"number": iss.GetNumber(), "title": iss.GetTitle(), "state": iss.GetState(),
			"author": iss.GetUser().GetLogin(), "labels": labels,
			"updated_at": iss.UpdatedAt.Time.UTC().Format(time.RFC3339Nano),
		}
		if iss.ClosedAt != nil {
			payload["closed_at"] = iss.ClosedAt.Time.UTC().Format(time.RFC3339Nano)
		}
		envelopes = append(envelopes, models.RawEventEnvelope{
			SourceSystem: "github", EventType: models.EventTypeIssue,
			SourceEventID: &sourceID, RepoExternalID: &repoExternalID,
			OccurredAt: iss.UpdatedAt.Time, Payload: payload,
		})
	}
	return pageFromResponse(envelopes, resp), nil
}

func pageFromResponse(envelopes []models.RawEventEnvelope, resp *github.Response) Page {
	page := Page{Envelopes: envelopes}
	if resp != nil && resp.NextPage != 0 {
		cursor := strconv.Itoa(resp.NextPage)
		page.NextCursor = &cursor
		page.HasMore = true
	}
	return page
}

func classifyGitHubError(err error) error {
	if rateErr, ok := err.(*github.RateLimitError); ok {
		return errs.Wrap(errs.Remote5xx, rateErr, "github rate limit exceeded")
	}
	if ghErr, ok := err.(*github.ErrorResponse); ok && ghErr.Response != nil {
		if ghErr.Response.StatusCode >= 500 {
			return errs.Wrap(errs.Remote5xx, err, fmt.Sprintf("github %d", ghErr.Response.StatusCode))
		}
		return errs.Wrap(errs.Remote4xx, err, fmt.Sprintf("github %d", ghErr.Response.StatusCode))
	}
	return errs.Wrap(errs.Remote5xx, err, "github request failed")
}
