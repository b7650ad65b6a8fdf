package action

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// SetOutput records a step output. It appends to the file named by
// GITHUB_OUTPUT and falls back to the legacy set-output command when the
// runner does not provide one.
func (e *Env) SetOutput(cmds *Commands, name, value string) error {
	path := e.getenv("GITHUB_OUTPUT")
	if path == "" {
		cmds.Issue("set-output", Properties{"name": name}, value)
		return nil
	}

	entry, err := fileCommandEntry(name, value)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644) //nolint:gosec // G302: path supplied by the runner
	if err != nil {
		return fmt.Errorf("open output file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("write output %s: %w", name, err)
	}
	return nil
}

// fileCommandEntry renders name<<delimiter\nvalue\ndelimiter\n with a random
// delimiter that must not occur in the name or value.
func fileCommandEntry(name, value string) (string, error) {
	delimiter := "ghadelimiter_" + uuid.New().String()
	if strings.Contains(name, delimiter) {
		return "", fmt.Errorf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return "", fmt.Errorf("unexpected input: value should not contain the delimiter %q", delimiter)
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}
