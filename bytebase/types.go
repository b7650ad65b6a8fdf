package bytebase

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ChangeType classifies how a versioned file changes the database.
type ChangeType string

const (
	ChangeTypeDDL      ChangeType = "DDL"
	ChangeTypeDML      ChangeType = "DML"
	ChangeTypeDDLGhost ChangeType = "DDL_GHOST"
)

// FileType is the release file kind. Only versioned files are produced.
type FileType string

const FileTypeVersioned FileType = "VERSIONED"

// VCSType identifies the version-control host a release originates from.
type VCSType string

const VCSTypeGitHub VCSType = "GITHUB"

// Advice statuses reported by the check endpoint.
const (
	StatusError   = "ERROR"
	StatusWarning = "WARNING"
)

// Sheet is a blob of SQL text uploaded ahead of a release.
type Sheet struct {
	Title string `json:"title"`
	// Content is base64 encoded by encoding/json.
	Content []byte `json:"content"`
}

// ReleaseFile binds a migration file to its uploaded sheet.
type ReleaseFile struct {
	Path       string     `json:"path"`
	Version    string     `json:"version"`
	Sheet      string     `json:"sheet"`
	Type       FileType   `json:"type"`
	ChangeType ChangeType `json:"changeType"`
}

// VCSSource points a release back at the commit that produced it.
type VCSSource struct {
	VCSType VCSType `json:"vcsType"`
	URL     string  `json:"url"`
}

// Release is the ordered bundle of files submitted for later application.
type Release struct {
	Title     string        `json:"title"`
	Files     []ReleaseFile `json:"files"`
	VCSSource VCSSource     `json:"vcsSource"`
}

// CheckFile is a release file sent inline to the check endpoint.
type CheckFile struct {
	Path       string     `json:"path"`
	Statement  []byte     `json:"statement"`
	Version    string     `json:"version"`
	ChangeType ChangeType `json:"changeType"`
	Type       FileType   `json:"type"`
}

// Advice is a single lint finding.
type Advice struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CheckResult is the check outcome of one file against one target.
type CheckResult struct {
	File         string   `json:"file"`
	Target       string   `json:"target"`
	Advices      []Advice `json:"advices"`
	AffectedRows Int64    `json:"affectedRows"`
	RiskLevel    string   `json:"riskLevel"`
}

// CheckReleaseResponse is the body returned by releases:check.
type CheckReleaseResponse struct {
	Results      []CheckResult `json:"results"`
	AffectedRows Int64         `json:"affectedRows"`
	RiskLevel    string        `json:"riskLevel"`
}

// DatabaseFiles lists release files affected on one database.
type DatabaseFiles struct {
	Database string   `json:"database"`
	Files    []string `json:"files"`
}

// PreviewPlanResponse is the body returned by :previewPlan.
type PreviewPlanResponse struct {
	Plan                    json.RawMessage `json:"plan"`
	OutOfOrderFiles         []DatabaseFiles `json:"outOfOrderFiles"`
	AppliedButModifiedFiles []DatabaseFiles `json:"appliedButModifiedFiles"`
}

// Int64 decodes both JSON numbers and the quoted form protobuf JSON uses
// for 64-bit integers.
type Int64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int64) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("bytebase: invalid int64 %s: %w", data, err)
	}
	*n = Int64(v)
	return nil
}
