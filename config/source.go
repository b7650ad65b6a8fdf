package config

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/release-action/action"
)

// Source provides configuration values from one backend.
type Source interface {
	// Load returns the values this source sets.
	Load(ctx context.Context) (*Values, error)

	// Name returns a human-readable identifier for this source.
	Name() string
}

// Targets is a list of target databases. In YAML it may be written as a
// comma separated string or as a sequence.
type Targets []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Targets) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*t = SplitTargets(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*t = SplitTargets(strings.Join(items, ","))
		return nil
	default:
		return fmt.Errorf("line %d: targets must be a string or a list", value.Line)
	}
}

// FileSource loads values from a YAML file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource that reads from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the file. Unknown keys are rejected.
func (s *FileSource) Load(_ context.Context) (*Values, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var v Values
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &v, nil
}

// Name returns a human-readable identifier for this source.
func (s *FileSource) Name() string { return "file:" + s.path }

// InputSource reads the action inputs from the runner environment. Empty
// inputs are treated as unset.
type InputSource struct {
	env *action.Env
}

// NewInputSource creates an InputSource.
func NewInputSource(env *action.Env) *InputSource {
	return &InputSource{env: env}
}

// Load implements Source.
func (s *InputSource) Load(_ context.Context) (*Values, error) {
	v := &Values{
		URL:            s.input("url"),
		Token:          s.input("token"),
		Project:        s.input("project"),
		FilePattern:    s.input("file-pattern"),
		CheckRelease:   s.input("check-release"),
		LogLevel:       s.input("log-level"),
		PushgatewayURL: s.input("pushgateway-url"),
	}
	if raw := s.input("targets"); raw != nil {
		t := SplitTargets(*raw)
		v.Targets = &t
	}

	validateOnly, ok, err := s.env.BoolInput("validate-only")
	if err != nil {
		return nil, &Error{Field: "validate-only", Message: err.Error()}
	}
	if ok {
		v.ValidateOnly = &validateOnly
	}

	if v.LogLevel == nil && s.env.Get("RUNNER_DEBUG") == "1" {
		debug := "debug"
		v.LogLevel = &debug
	}
	return v, nil
}

func (s *InputSource) input(name string) *string {
	if v := s.env.Input(name); v != "" {
		return &v
	}
	return nil
}

// Name returns a human-readable identifier for this source.
func (s *InputSource) Name() string { return "action inputs" }

// FlagSource exposes command-line flags. Only flags set explicitly on the
// command line override other sources.
type FlagSource struct {
	fs           *flag.FlagSet
	stringVals   map[string]*string
	validateOnly *bool
	configPath   *string
}

var stringFlags = []struct {
	name  string
	usage string
}{
	{"url", "Bytebase URL"},
	{"token", "Bytebase access token"},
	{"project", "Bytebase project, e.g. projects/hr"},
	{"file-pattern", "glob matching the migration files"},
	{"check-release", "SKIP, FAIL_ON_WARNING or FAIL_ON_ERROR"},
	{"targets", "comma separated target databases or database groups"},
	{"log-level", "debug, info, warn or error"},
	{"pushgateway-url", "Prometheus pushgateway for run metrics"},
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *flag.FlagSet) *FlagSource {
	s := &FlagSource{fs: fs, stringVals: make(map[string]*string, len(stringFlags))}
	for _, f := range stringFlags {
		s.stringVals[f.name] = fs.String(f.name, "", f.usage)
	}
	s.validateOnly = fs.Bool("validate-only", false, "only check the files, do not create a release")
	s.configPath = fs.String("config", "", "path to a YAML config file")
	return s
}

// ConfigPath returns the -config flag value.
func (s *FlagSource) ConfigPath() string { return *s.configPath }

// Load implements Source.
func (s *FlagSource) Load(_ context.Context) (*Values, error) {
	v := &Values{}
	s.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			v.URL = s.stringVals[f.Name]
		case "token":
			v.Token = s.stringVals[f.Name]
		case "project":
			v.Project = s.stringVals[f.Name]
		case "file-pattern":
			v.FilePattern = s.stringVals[f.Name]
		case "check-release":
			v.CheckRelease = s.stringVals[f.Name]
		case "targets":
			t := SplitTargets(*s.stringVals[f.Name])
			v.Targets = &t
		case "log-level":
			v.LogLevel = s.stringVals[f.Name]
		case "pushgateway-url":
			v.PushgatewayURL = s.stringVals[f.Name]
		case "validate-only":
			v.ValidateOnly = s.validateOnly
		}
	})
	return v, nil
}

// Name returns a human-readable identifier for this source.
func (s *FlagSource) Name() string { return "flags" }
