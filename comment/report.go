// Package comment publishes release check results as a pull request comment.
package comment

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/release-action/bytebase"
)

const (
	// MaxLength is the comment body limit of the source-control host.
	MaxLength = 65536
	// lengthMargin keeps the body clear of MaxLength.
	lengthMargin = 1000
)

// Marker prefixes the comment body so later runs can find and update it.
func Marker(pullRequest int) string {
	return fmt.Sprintf("<!--BYTEBASE_MARKER-PR_%d-DO_NOT_EDIT-->", pullRequest)
}

// Counts returns the number of ERROR and WARNING advices across all results.
// Every advice counts once per (file, target) occurrence.
func Counts(results []bytebase.CheckResult) (errs, warnings int) {
	for _, r := range results {
		e, w := adviceCounts(r.Advices)
		errs += e
		warnings += w
	}
	return errs, warnings
}

func adviceCounts(advices []bytebase.Advice) (errs, warnings int) {
	for _, a := range advices {
		switch a.Status {
		case bytebase.StatusError:
			errs++
		case bytebase.StatusWarning:
			warnings++
		}
	}
	return errs, warnings
}

// Render builds the markdown report. Result rows that would push the body
// past the length ceiling are left out.
func Render(res *bytebase.CheckReleaseResponse) string {
	return render(res, MaxLength-lengthMargin)
}

func render(res *bytebase.CheckReleaseResponse, limit int) string {
	errs, warnings := Counts(res.Results)

	var b strings.Builder
	fmt.Fprintf(&b, `
## SQL Review Summary

* Total Affected Rows: **%d**
* Overall Risk Level: **%s**
* Advices Statistics: **%d Error(s), %d Warning(s)**
`, res.AffectedRows, RiskLevel(res.RiskLevel), errs, warnings)

	b.WriteString("### Detailed Results\n")
	b.WriteString(`
<table>
  <thead>
    <tr>
      <th>File</th>
      <th>Target</th>
      <th>Affected Rows</th>
      <th>Risk Level</th>
      <th>Advices</th>
    </tr>
  </thead>
  <tbody>`)

	const tableEnd = "</tbody></table>"
	for _, r := range res.Results {
		row := resultRow(r)
		if b.Len()+len(row)+len(tableEnd) > limit {
			break
		}
		b.WriteString(row)
	}
	b.WriteString(tableEnd)
	return b.String()
}

func resultRow(r bytebase.CheckResult) string {
	errs, warnings := adviceCounts(r.Advices)
	var counts []string
	if errs > 0 {
		counts = append(counts, fmt.Sprintf("%d Error(s)", errs))
	}
	if warnings > 0 {
		counts = append(counts, fmt.Sprintf("%d Warning(s)", warnings))
	}
	cell := "-"
	if len(counts) > 0 {
		cell = strings.Join(counts, ", ")
	}
	return fmt.Sprintf(`<tr>
  <td>%s</td>
  <td>%s</td>
  <td>%d</td>
  <td>%s</td>
  <td>%s</td>
</tr>`, r.File, r.Target, r.AffectedRows, RiskLevel(r.RiskLevel), cell)
}

// RiskLevel renders a risk level with its emoji.
func RiskLevel(level string) string {
	switch level {
	case "LOW":
		return "🟢 Low"
	case "MODERATE":
		return "🟡 Moderate"
	case "HIGH":
		return "🔴 High"
	default:
		return "⚪ None"
	}
}
