// Package release sequences a complete run: collect migration files, check
// them, upload them as sheets, create the release and preview its plan.
package release

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoCodeAlone/release-action/action"
	"github.com/GoCodeAlone/release-action/bytebase"
	"github.com/GoCodeAlone/release-action/check"
	"github.com/GoCodeAlone/release-action/collector"
)

// Service is the subset of the release API the runner mutates.
type Service interface {
	BatchCreateSheets(ctx context.Context, project string, sheets []bytebase.Sheet) ([]string, error)
	CreateRelease(ctx context.Context, project string, release *bytebase.Release) (string, error)
	PreviewPlan(ctx context.Context, project, releaseName string, targets []string, allowOutOfOrder bool) (*bytebase.PreviewPlanResponse, error)
}

// FileCollector finds the migration files of a run.
type FileCollector interface {
	Collect(workdir, pattern string) ([]collector.File, error)
}

// Checker runs the pre-release check.
type Checker interface {
	Run(ctx context.Context, files []collector.File, targets []string, level check.Level, validateOnly bool) (check.Outcome, error)
}

// Recorder receives run counters. It may be nil.
type Recorder interface {
	RecordFile(changeType bytebase.ChangeType)
	RecordSheets(n int)
}

// Settings are the validated inputs of a run.
type Settings struct {
	URL          string
	Project      string
	FilePattern  string
	Targets      []string
	CheckLevel   check.Level
	ValidateOnly bool
}

// Runner executes the release sequence. Each step depends on the previous
// one succeeding; nothing runs concurrently.
type Runner struct {
	settings  Settings
	ghCtx     *action.Context
	collector FileCollector
	checker   Checker
	service   Service
	recorder  Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(settings Settings, ghCtx *action.Context, fc FileCollector, checker Checker, service Service, recorder Recorder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		settings:  settings,
		ghCtx:     ghCtx,
		collector: fc,
		checker:   checker,
		service:   service,
		recorder:  recorder,
		logger:    logger.With("component", "release"),
		tracer:    otel.Tracer("release-action/release"),
	}
}

// Run executes the sequence and returns the created release name. In
// validate-only mode it stops after the check and returns "".
func (r *Runner) Run(ctx context.Context) (string, error) {
	ctx, span := r.tracer.Start(ctx, "release.Run")
	defer span.End()

	name, err := r.run(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return name, err
}

func (r *Runner) run(ctx context.Context) (string, error) {
	s := r.settings

	files, err := r.collector.Collect(r.ghCtx.Workspace, s.FilePattern)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if r.recorder != nil {
			r.recorder.RecordFile(f.ChangeType)
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("release.files", len(files)))

	if _, err := r.checker.Run(ctx, files, s.Targets, s.CheckLevel, s.ValidateOnly); err != nil {
		return "", err
	}

	if s.ValidateOnly {
		r.logger.Info("validate-only mode, skip creating release")
		return "", nil
	}

	sheetNames, err := r.createSheets(ctx, files)
	if err != nil {
		return "", err
	}

	releaseFiles := make([]bytebase.ReleaseFile, len(files))
	for i, f := range files {
		releaseFiles[i] = bytebase.ReleaseFile{
			Path:       f.Path,
			Version:    f.Version,
			Sheet:      sheetNames[i],
			Type:       f.Type,
			ChangeType: f.ChangeType,
		}
	}

	name, err := r.createRelease(ctx, releaseFiles)
	if err != nil {
		return "", err
	}
	r.logger.Info("Release created", "release", name, "url", s.URL+"/"+name)

	if err := r.previewPlan(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Runner) createSheets(ctx context.Context, files []collector.File) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "release.createSheets")
	defer span.End()

	sheets := make([]bytebase.Sheet, len(files))
	for i, f := range files {
		sheets[i] = bytebase.Sheet{Title: "sheet for " + f.Path, Content: f.Content}
	}

	names, err := r.service.BatchCreateSheets(ctx, r.settings.Project, sheets)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(names) != len(sheets) {
		err := &SheetCountMismatchError{Want: len(sheets), Got: len(names)}
		span.RecordError(err)
		return nil, err
	}
	if r.recorder != nil {
		r.recorder.RecordSheets(len(names))
	}
	span.SetAttributes(attribute.Int("release.sheets", len(names)))
	return names, nil
}

func (r *Runner) createRelease(ctx context.Context, files []bytebase.ReleaseFile) (string, error) {
	ctx, span := r.tracer.Start(ctx, "release.createRelease")
	defer span.End()

	rel := &bytebase.Release{
		Title: r.ghCtx.Repo.String() + "@" + r.ghCtx.SHA,
		Files: files,
		VCSSource: bytebase.VCSSource{
			VCSType: bytebase.VCSTypeGitHub,
			URL:     r.ghCtx.CommitURL(),
		},
	}
	name, err := r.service.CreateRelease(ctx, r.settings.Project, rel)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("release.name", name))
	return name, nil
}

// previewPlan asks the service to enumerate out-of-order files and fails
// locally when there are any. Applied-but-modified files are only warned
// about.
func (r *Runner) previewPlan(ctx context.Context, name string) error {
	ctx, span := r.tracer.Start(ctx, "release.previewPlan")
	defer span.End()

	res, err := r.service.PreviewPlan(ctx, r.settings.Project, name, r.settings.Targets, true)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, f := range res.AppliedButModifiedFiles {
		r.logger.Warn("found applied but modified files", "database", f.Database, "files", strings.Join(f.Files, ","))
	}
	if len(res.OutOfOrderFiles) > 0 {
		for _, f := range res.OutOfOrderFiles {
			r.logger.Error("found out of order files", "database", f.Database, "files", strings.Join(f.Files, ","))
		}
		err := &DatabaseFilesError{Err: ErrOutOfOrderFiles, Files: res.OutOfOrderFiles}
		span.RecordError(err)
		return err
	}
	return nil
}
