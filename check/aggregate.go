package check

import "github.com/GoCodeAlone/release-action/bytebase"

// groupKey identifies identical advices reported for different targets.
type groupKey struct {
	file   string
	status string
	code   int
	line   int
	column int
	title  string
}

// Group is an advice together with every target that reported it.
type Group struct {
	File    string
	Advice  bytebase.Advice
	Targets []string
}

// Aggregate folds advices that differ only by target into one Group. Groups
// are returned in first-seen order.
func Aggregate(res *bytebase.CheckReleaseResponse) []Group {
	index := make(map[groupKey]int)
	var groups []Group
	for _, r := range res.Results {
		for _, a := range r.Advices {
			k := groupKey{
				file:   r.File,
				status: a.Status,
				code:   a.Code,
				line:   a.Line,
				column: a.Column,
				title:  a.Title,
			}
			i, ok := index[k]
			if !ok {
				i = len(groups)
				index[k] = i
				groups = append(groups, Group{File: r.File, Advice: a})
			}
			groups[i].Targets = append(groups[i].Targets, r.Target)
		}
	}
	return groups
}
