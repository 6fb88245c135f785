package classifier

import (
	"os"

	"github.com/goccy/go-yaml"
	"golang.org/x/xerrors"
)

var defaultWebRules = []Rule{
	{Match: "chat.openai.com", Service: "ChatGPT"},
	{Match: "claude.ai", Service: "Claude"},
	{Match: "www.perplexity.ai", Service: "Perplexity"},
	{Match: "bard.google.com", Service: "Google Bard"},
	{Match: "www.bing.com", Service: "Bing Chat"},
	{Match: "www.cursor.com", Service: "Cursor"},
	{Match: "github.com", Service: "GitHub Copilot"},
}

var defaultWebOverrides = []Override{
	{Host: "github.com", PathContains: "/copilot", Service: "GitHub Copilot"},
}

var defaultProcessRules = []Rule{
	{Match: "Cursor", Service: "Cursor"},
	{Match: "Cursor.app", Service: "Cursor"},
	{Match: "Code", Service: "VS Code"},
	{Match: "Visual Studio Code", Service: "VS Code"},
	{Match: "Cursor.exe", Service: "Cursor"},
	{Match: "Code.exe", Service: "VS Code"},
}

var defaultProcessOverrides = []Override{
	{Contains: "Code", Service: "GitHub Copilot", Fallback: true},
}

func DefaultWeb() *Classifier {
	return New(KindWeb, defaultWebRules, defaultWebOverrides)
}

func DefaultProcess() *Classifier {
	return New(KindProcess, defaultProcessRules, defaultProcessOverrides)
}

// Table is one section of a classifier file.
type Table struct {
	Rules     []Rule     `yaml:"rules"`
	Overrides []Override `yaml:"overrides,omitempty"`
}

// File is the on-disk classifier configuration. A missing section keeps the
// built-in table for that kind.
type File struct {
	Web     *Table `yaml:"web,omitempty"`
	Process *Table `yaml:"process,omitempty"`
}

// Parse decodes a classifier file and returns the classifier for kind.
func Parse(data []byte, kind Kind) (*Classifier, error) {
	var f File
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, xerrors.Errorf("parse classifier file: %w", err)
	}
	switch kind {
	case KindWeb:
		if f.Web == nil {
			return DefaultWeb(), nil
		}
		return New(KindWeb, f.Web.Rules, f.Web.Overrides), nil
	case KindProcess:
		if f.Process == nil {
			return DefaultProcess(), nil
		}
		return New(KindProcess, f.Process.Rules, f.Process.Overrides), nil
	default:
		return nil, xerrors.Errorf("unknown classifier kind %q", kind)
	}
}

// Load reads path and returns the classifier for kind. An empty path yields
// the built-in table.
func Load(path string, kind Kind) (*Classifier, error) {
	if path == "" {
		if kind == KindWeb {
			return DefaultWeb(), nil
		}
		return DefaultProcess(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read classifier file: %w", err)
	}
	return Parse(data, kind)
}
