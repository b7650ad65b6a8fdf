// Package action adapts the tool to the GitHub Actions runner: inputs,
// outputs, workflow commands and the event context.
package action

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Properties are the key/value pairs of a workflow command, e.g. the file
// and line of an annotation.
type Properties map[string]string

// Commands writes workflow commands (::name props::message) to the runner.
type Commands struct {
	mu sync.Mutex
	w  io.Writer
}

// NewCommands creates a Commands writing to w, normally os.Stdout.
func NewCommands(w io.Writer) *Commands {
	return &Commands{w: w}
}

// Issue writes a single workflow command line.
func (c *Commands) Issue(name string, props Properties, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, formatCommand(name, props, message))
}

// Error writes an error annotation.
func (c *Commands) Error(message string) { c.Issue("error", nil, message) }

// Annotation describes a file-level annotation.
type Annotation struct {
	// Level is one of "error", "warning" or "notice".
	Level  string
	File   string
	Line   int
	Column int
	Title  string
}

// Annotate writes an annotation pinned to a file location.
func (c *Commands) Annotate(a Annotation, message string) {
	props := Properties{"file": a.File}
	if a.Line > 0 {
		props["line"] = fmt.Sprint(a.Line)
	}
	if a.Column > 0 {
		props["col"] = fmt.Sprint(a.Column)
	}
	if a.Title != "" {
		props["title"] = a.Title
	}
	level := a.Level
	if level == "" {
		level = "notice"
	}
	c.Issue(level, props, message)
}

// formatCommand renders a workflow command. Property keys are emitted in a
// fixed order so output is stable.
func formatCommand(name string, props Properties, message string) string {
	var b strings.Builder
	b.WriteString("::")
	b.WriteString(name)
	if len(props) > 0 {
		b.WriteByte(' ')
		keys := make([]string, 0, len(props))
		for k, v := range props {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return propertyRank(keys[i], keys[j]) })
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(escapeProperty(props[k]))
		}
	}
	b.WriteString("::")
	b.WriteString(escapeData(message))
	return b.String()
}

var propertyOrder = map[string]int{"name": 0, "file": 1, "line": 2, "endLine": 3, "col": 4, "endColumn": 5, "title": 6}

func propertyRank(a, b string) bool {
	ra, oka := propertyOrder[a]
	rb, okb := propertyOrder[b]
	switch {
	case oka && okb:
		return ra < rb
	case oka != okb:
		return oka
	default:
		return a < b
	}
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
