package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/release-action/action"
	"github.com/GoCodeAlone/release-action/bytebase"
	"github.com/GoCodeAlone/release-action/scm"
)

// BotUserID is the user id of github-actions[bot]
// (https://api.github.com/users/github-actions[bot]).
const BotUserID = 41898282

// ErrNoPullRequest is returned when the run was not triggered by a pull
// request.
var ErrNoPullRequest = errors.New("no pull request found in the context")

// IssueCommenter is the subset of the source-control API the publisher uses.
type IssueCommenter interface {
	ListComments(ctx context.Context, owner, repo string, number int) ([]scm.IssueComment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*scm.IssueComment, error)
	UpdateComment(ctx context.Context, owner, repo string, id int64, body string) (*scm.IssueComment, error)
}

// Publisher upserts the check summary comment on the originating pull
// request.
type Publisher struct {
	client      IssueCommenter
	repo        action.Repository
	pullRequest int
	logger      *slog.Logger
}

// NewPublisher creates a Publisher for the pull request in ghCtx.
func NewPublisher(client IssueCommenter, ghCtx *action.Context, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:      client,
		repo:        ghCtx.Repo,
		pullRequest: ghCtx.PullRequest,
		logger:      logger.With("component", "comment"),
	}
}

// Publish renders res and creates or updates the marker-tagged comment.
// When several marked comments exist the last one is updated.
func (p *Publisher) Publish(ctx context.Context, res *bytebase.CheckReleaseResponse) error {
	if p.pullRequest <= 0 {
		return ErrNoPullRequest
	}

	marker := Marker(p.pullRequest)
	body := marker + "\n" + Render(res)

	comments, err := p.client.ListComments(ctx, p.repo.Owner, p.repo.Name, p.pullRequest)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	var existing *scm.IssueComment
	for i := range comments {
		c := &comments[i]
		if c.User != nil && c.User.ID == BotUserID && strings.HasPrefix(c.Body, marker) {
			existing = c
		}
	}

	if existing != nil {
		p.logger.Debug("found existing comment", "id", existing.ID)
		if _, err := p.client.UpdateComment(ctx, p.repo.Owner, p.repo.Name, existing.ID, body); err != nil {
			return fmt.Errorf("update comment %d: %w", existing.ID, err)
		}
		return nil
	}

	if _, err := p.client.CreateComment(ctx, p.repo.Owner, p.repo.Name, p.pullRequest, body); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}
