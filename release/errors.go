package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/release-action/bytebase"
)

// ErrOutOfOrderFiles is wrapped by a DatabaseFilesError when the plan
// preview reports files older than ones already applied.
var ErrOutOfOrderFiles = errors.New("found out of order files")

// SheetCountMismatchError is returned when the service creates a different
// number of sheets than were requested.
type SheetCountMismatchError struct {
	Want int
	Got  int
}

func (e *SheetCountMismatchError) Error() string {
	return fmt.Sprintf("expect to create %d sheets but get %d", e.Want, e.Got)
}

// DatabaseFilesError lists the offending files per database.
type DatabaseFilesError struct {
	Err   error
	Files []bytebase.DatabaseFiles
}

func (e *DatabaseFilesError) Error() string {
	return fmt.Sprintf("failed to create release: %v\n%s", e.Err, formatDatabaseFiles(e.Files))
}

func (e *DatabaseFilesError) Unwrap() error { return e.Err }

// formatDatabaseFiles renders one "<database>:<file>,<file>" line per entry.
func formatDatabaseFiles(files []bytebase.DatabaseFiles) string {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, f.Database+":"+strings.Join(f.Files, ","))
	}
	return strings.Join(lines, "\n")
}
