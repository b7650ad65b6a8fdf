package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/release-action/action"
	"github.com/GoCodeAlone/release-action/bytebase"
	"github.com/GoCodeAlone/release-action/check"
	"github.com/GoCodeAlone/release-action/collector"
	"github.com/GoCodeAlone/release-action/comment"
	"github.com/GoCodeAlone/release-action/config"
	"github.com/GoCodeAlone/release-action/release"
	"github.com/GoCodeAlone/release-action/scm"
	"github.com/GoCodeAlone/release-action/telemetry"
)

func runRun(args []string) error { return runCommand("run", args, false) }

func runCheck(args []string) error { return runCommand("check", args, true) }

func runCommand(name string, args []string, validateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, name, args, os.Getenv, os.Stdout, validateOnly)
}

// execute runs one command against the given environment. Logs and
// workflow commands are written to stdout, where the runner parses them.
func execute(ctx context.Context, name string, args []string, getenv func(string) string, stdout io.Writer, validateOnly bool) (err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := config.BindFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: release-action %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	env := action.NewEnv(getenv)
	cmds := action.NewCommands(stdout)

	var sources []config.Source
	path := flags.ConfigPath()
	if path == "" {
		path = env.Input("config")
	}
	if path != "" {
		sources = append(sources, config.NewFileSource(path))
	}
	sources = append(sources, config.NewInputSource(env), flags)

	cfg, err := config.Load(ctx, sources...)
	if err != nil {
		return err
	}
	if validateOnly {
		cfg.ValidateOnly = true
	}

	logger := slog.New(action.NewLogHandler(stdout, cfg.LogLevel))

	ghCtx, err := env.Context()
	if err != nil {
		return err
	}

	tracing, err := telemetry.StartTracing(ctx, telemetry.TracingConfig{
		Getenv:         env.Get,
		ServiceName:    "release-action",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	metrics := telemetry.NewMetrics("release_action")

	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.RecordRun(name, outcome, time.Since(start))

		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cfg.PushgatewayURL != "" {
			grouping := map[string]string{"project": cfg.Project}
			if ghCtx.Repo.Owner != "" {
				grouping["repository"] = ghCtx.Repo.String()
			}
			if perr := metrics.Push(flushCtx, cfg.PushgatewayURL, "release-action", grouping); perr != nil {
				logger.Warn("failed to push metrics", "error", perr)
			}
		}
		if serr := tracing.Shutdown(flushCtx); serr != nil {
			logger.Warn("failed to flush traces", "error", serr)
		}
	}()

	client := bytebase.NewClient(cfg.URL, cfg.Token,
		bytebase.WithLogger(logger),
		bytebase.WithUserAgent("release-action/"+version),
		bytebase.WithObserver(metrics.ObserveRequest),
	)

	var publisher check.Publisher
	if ghCtx.Token != "" {
		gh := scm.NewGitHubClient(ghCtx.APIURL, ghCtx.Token, nil)
		publisher = comment.NewPublisher(gh, ghCtx, logger)
	} else if cfg.ValidateOnly {
		logger.Warn("GITHUB_TOKEN is not set, the check summary will not be commented")
	}

	checker := check.NewChecker(client, cfg.Project, cmds, publisher, metrics, logger)
	runner := release.NewRunner(release.Settings{
		URL:          client.BaseURL(),
		Project:      cfg.Project,
		FilePattern:  cfg.FilePattern,
		Targets:      cfg.Targets,
		CheckLevel:   cfg.CheckRelease,
		ValidateOnly: cfg.ValidateOnly,
	}, ghCtx, collector.New(logger), checker, client, metrics, logger)

	releaseName, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s interrupted: %w", name, err)
		}
		return err
	}
	if releaseName == "" {
		return nil
	}
	return env.SetOutput(cmds, "release", releaseName)
}
