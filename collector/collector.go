// Package collector finds versioned migration files in a workspace.
package collector

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GoCodeAlone/release-action/bytebase"
)

// ErrNoFilesFound is returned when the pattern yields no versioned files.
var ErrNoFilesFound = errors.New("no migration files found")

// Only numeric versions are supported.
var versionPattern = regexp.MustCompile(`^\d+`)

// File is a versioned migration file ready to be checked or uploaded.
type File struct {
	// Path is relative to the workspace, using forward slashes.
	Path       string
	Version    string
	Content    []byte
	Type       bytebase.FileType
	ChangeType bytebase.ChangeType
}

// Collector globs migration files under a workspace.
type Collector struct {
	logger *slog.Logger
}

// New creates a Collector.
func New(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger.With("component", "collector")}
}

// Collect matches pattern and returns the versioned files in glob order.
// Relative patterns are resolved against workdir. Files whose name has no
// leading version number are skipped with a warning.
func (c *Collector) Collect(workdir, pattern string) ([]File, error) {
	matches, err := c.glob(workdir, pattern)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, m := range matches {
		rel, err := filepath.Rel(workdir, m)
		if err != nil {
			return nil, fmt.Errorf("relative path of %s: %w", m, err)
		}
		rel = filepath.ToSlash(rel)

		base := path.Base(rel)
		version := versionPattern.FindString(base)
		if version == "" {
			c.logger.Warn("failed to get version, ignore file", "path", m)
			continue
		}

		content, err := os.ReadFile(m) //nolint:gosec // G304: path comes from the configured glob
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}

		f := File{
			Path:       rel,
			Version:    version,
			Content:    content,
			Type:       bytebase.FileTypeVersioned,
			ChangeType: ChangeTypeOf(base),
		}
		c.logger.Debug("collected migration file",
			"path", f.Path,
			"version", f.Version,
			"change_type", string(f.ChangeType),
		)
		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w, the file pattern is %s", ErrNoFilesFound, pattern)
	}
	return files, nil
}

// glob returns absolute paths of regular files matching pattern. Relative
// patterns, including ones that climb out of workdir with "..", are joined
// onto workdir first.
func (c *Collector) glob(workdir, pattern string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(workdir, pattern)
	}
	matches, err := doublestar.FilepathGlob(full, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return matches, nil
}

// ChangeTypeOf classifies a file by the suffix of its name without
// extension: "dml" is DML, "ghost" is DDL_GHOST, anything else DDL. The
// ghost check runs last and wins.
func ChangeTypeOf(name string) bytebase.ChangeType {
	stem := strings.TrimSuffix(name, path.Ext(name))
	changeType := bytebase.ChangeTypeDDL
	if strings.HasSuffix(stem, "dml") {
		changeType = bytebase.ChangeTypeDML
	}
	if strings.HasSuffix(stem, "ghost") {
		changeType = bytebase.ChangeTypeDDLGhost
	}
	return changeType
}
