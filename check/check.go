// Package check runs the pre-release lint of migration files against target
// databases and turns the advices into annotations and a pass/fail verdict.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/GoCodeAlone/release-action/action"
	"github.com/GoCodeAlone/release-action/bytebase"
	"github.com/GoCodeAlone/release-action/collector"
)

// ErrCheckViolation is returned when advices violate the configured level.
var ErrCheckViolation = errors.New("Release checks find ERROR or WARNING violations") //nolint:staticcheck // ST1005: message is shown verbatim as the step failure

const docsURL = "https://www.bytebase.com/docs/reference/error-code/advisor#"

// Level is the severity gate applied to check advices.
type Level string

const (
	LevelSkip          Level = "SKIP"
	LevelFailOnWarning Level = "FAIL_ON_WARNING"
	LevelFailOnError   Level = "FAIL_ON_ERROR"
)

// ParseLevel validates a check level value.
func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case LevelSkip, LevelFailOnWarning, LevelFailOnError:
		return l, nil
	default:
		return "", fmt.Errorf("unknown check-release value %s", s)
	}
}

// Outcome is the result of a check run.
type Outcome string

const (
	OutcomeSkip Outcome = "SKIP"
	OutcomePass Outcome = "PASS"
	OutcomeFail Outcome = "FAIL"
)

// Client is the subset of the release API the checker calls.
type Client interface {
	CheckRelease(ctx context.Context, project string, files []bytebase.CheckFile, targets []string) (*bytebase.CheckReleaseResponse, error)
}

// Publisher posts the full check response somewhere humans will read it.
type Publisher interface {
	Publish(ctx context.Context, res *bytebase.CheckReleaseResponse) error
}

// Recorder receives per-advice counts. It may be nil.
type Recorder interface {
	RecordAdvice(status string)
}

// Checker drives a single check run.
type Checker struct {
	client    Client
	project   string
	cmds      *action.Commands
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
}

// NewChecker creates a Checker. publisher and recorder may be nil.
func NewChecker(client Client, project string, cmds *action.Commands, publisher Publisher, recorder Recorder, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		client:    client,
		project:   project,
		cmds:      cmds,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.With("component", "check"),
	}
}

// Run checks files against targets. With LevelSkip it returns immediately
// without calling the service. When validateOnly is set the response is
// published before the verdict; publish failures are only logged.
func (c *Checker) Run(ctx context.Context, files []collector.File, targets []string, level Level, validateOnly bool) (Outcome, error) {
	if level == LevelSkip {
		return OutcomeSkip, nil
	}

	ctx, span := otel.Tracer("release-action/check").Start(ctx, "check.Run")
	defer span.End()

	checkFiles := make([]bytebase.CheckFile, 0, len(files))
	for _, f := range files {
		checkFiles = append(checkFiles, bytebase.CheckFile{
			Path:       f.Path,
			Statement:  f.Content,
			Version:    f.Version,
			ChangeType: f.ChangeType,
			Type:       f.Type,
		})
	}

	res, err := c.client.CheckRelease(ctx, c.project, checkFiles, targets)
	if err != nil {
		span.RecordError(err)
		return OutcomeFail, err
	}

	groups := Aggregate(res)
	for _, g := range groups {
		c.annotate(g)
	}

	var hasError, hasWarning bool
	for _, r := range res.Results {
		for _, a := range r.Advices {
			switch a.Status {
			case bytebase.StatusError:
				hasError = true
			case bytebase.StatusWarning:
				hasWarning = true
			}
			if c.recorder != nil {
				c.recorder.RecordAdvice(a.Status)
			}
		}
	}
	span.SetAttributes(
		attribute.Int("check.advice_groups", len(groups)),
		attribute.Bool("check.has_error", hasError),
		attribute.Bool("check.has_warning", hasWarning),
	)

	if validateOnly && c.publisher != nil {
		if err := c.publisher.Publish(ctx, res); err != nil {
			c.logger.Warn("failed to create comment", "error", err)
		}
	}

	if hasError || (hasWarning && level == LevelFailOnWarning) {
		return OutcomeFail, ErrCheckViolation
	}
	return OutcomePass, nil
}

// annotate emits one annotation for an error or warning advice group.
// Advices of any other status are logged as plain lines.
func (c *Checker) annotate(g Group) {
	a := g.Advice
	msg := fmt.Sprintf("%s. Targets: %s %s%d", a.Content, strings.Join(g.Targets, ", "), docsURL, a.Code)
	title := fmt.Sprintf("%s (%d)", a.Title, a.Code)

	level, ok := annotationLevel(a.Status)
	if !ok {
		c.logger.Info("check advice", "status", a.Status, "file", g.File, "line", a.Line, "title", title, "message", msg)
		return
	}
	c.cmds.Annotate(action.Annotation{
		Level:  level,
		File:   g.File,
		Line:   a.Line,
		Column: a.Column,
		Title:  title,
	}, msg)
}

func annotationLevel(status string) (string, bool) {
	switch status {
	case bytebase.StatusError:
		return "error", true
	case bytebase.StatusWarning:
		return "warning", true
	default:
		return "", false
	}
}
