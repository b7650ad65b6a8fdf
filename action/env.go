package action

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Env reads inputs and runner context from environment variables.
type Env struct {
	getenv func(string) string
}

// NewEnv creates an Env backed by getenv, normally os.Getenv.
func NewEnv(getenv func(string) string) *Env {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Env{getenv: getenv}
}

// Get returns a raw environment variable.
func (e *Env) Get(key string) string { return e.getenv(key) }

// Input returns the trimmed value of an action input. The runner exposes
// input "file-pattern" as INPUT_FILE-PATTERN.
func (e *Env) Input(name string) string {
	key := "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
	return strings.TrimSpace(e.getenv(key))
}

// BoolInput parses a boolean input using the YAML 1.2 core schema forms.
// ok is false when the input is not set.
func (e *Env) BoolInput(name string) (value, ok bool, err error) {
	raw := e.Input(name)
	switch raw {
	case "":
		return false, false, nil
	case "true", "True", "TRUE":
		return true, true, nil
	case "false", "False", "FALSE":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("input %q does not meet YAML 1.2 \"Core Schema\" specification: %q (support true | True | TRUE | false | False | FALSE)", name, raw)
	}
}

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r Repository) String() string { return r.Owner + "/" + r.Name }

// Context is the source-control context of the current run.
type Context struct {
	ServerURL string
	APIURL    string
	Repo      Repository
	SHA       string
	Workspace string
	EventName string
	// PullRequest is the pull request number, 0 when the triggering event
	// carries no pull request.
	PullRequest int
	// Token authenticates comment posting. It is distinct from the
	// service token.
	Token string
}

// CommitURL returns the web URL of the commit being built.
func (c *Context) CommitURL() string {
	return fmt.Sprintf("%s/%s/%s/commits/%s", c.ServerURL, c.Repo.Owner, c.Repo.Name, c.SHA)
}

// Context loads the run context. The event payload is read from
// GITHUB_EVENT_PATH when present.
func (e *Env) Context() (*Context, error) {
	c := &Context{
		ServerURL: strings.TrimRight(e.getenv("GITHUB_SERVER_URL"), "/"),
		APIURL:    strings.TrimRight(e.getenv("GITHUB_API_URL"), "/"),
		SHA:       e.getenv("GITHUB_SHA"),
		Workspace: e.getenv("GITHUB_WORKSPACE"),
		EventName: e.getenv("GITHUB_EVENT_NAME"),
		Token:     e.getenv("GITHUB_TOKEN"),
	}
	if c.ServerURL == "" {
		c.ServerURL = "https://github.com"
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.github.com"
	}
	if repo := e.getenv("GITHUB_REPOSITORY"); repo != "" {
		owner, name, found := strings.Cut(repo, "/")
		if !found {
			return nil, fmt.Errorf("invalid GITHUB_REPOSITORY %q: expected owner/name", repo)
		}
		c.Repo = Repository{Owner: owner, Name: name}
	}
	if c.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		c.Workspace = wd
	}
	ws, err := filepath.Abs(c.Workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", c.Workspace, err)
	}
	c.Workspace = ws

	if path := e.getenv("GITHUB_EVENT_PATH"); path != "" {
		n, err := pullRequestNumber(path)
		if err != nil {
			return nil, err
		}
		c.PullRequest = n
	}
	return c, nil
}

func pullRequestNumber(eventPath string) (int, error) {
	data, err := os.ReadFile(eventPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read event payload %s: %w", eventPath, err)
	}
	var payload struct {
		PullRequest *struct {
			Number int `json:"number"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("parse event payload %s: %w", eventPath, err)
	}
	if payload.PullRequest == nil {
		return 0, nil
	}
	return payload.PullRequest.Number, nil
}
