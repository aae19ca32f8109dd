// Package prompt renders the prompt packs used by the agents.
package prompt

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Pack names.
const (
	Planning   = "planning"
	Evaluation = "evaluation"
	Judge      = "judge"
	Debate     = "debate"
	Decide     = "decide"
)

var ErrUnknownPack = errors.New("unknown prompt pack")

//go:embed prompts.yaml
var defaultPacks []byte

var funcs = template.FuncMap{
	"join": strings.Join,
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

type pack struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

// Library holds compiled prompt packs. It is safe for concurrent use.
type Library struct {
	packs map[string]compiled
}

// Default returns the embedded packs.
func Default() *Library {
	lib, err := Parse(defaultPacks)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded packs: %v", err))
	}
	return lib
}

// Load returns the embedded packs with the packs of the YAML file at path
// layered on top. An empty path returns the embedded packs.
func Load(path string) (*Library, error) {
	lib := Default()
	if path == "" {
		return lib, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt packs: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for name, p := range override.packs {
		lib.packs[name] = p
	}
	return lib, nil
}

func Parse(data []byte) (*Library, error) {
	var raw map[string]pack
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompt packs: %w", err)
	}
	lib := &Library{packs: make(map[string]compiled, len(raw))}
	for name, p := range raw {
		system, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=error").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		user, err := template.New(name + ".user").Funcs(funcs).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		lib.packs[name] = compiled{system: system, user: user}
	}
	return lib, nil
}

// Render executes the named pack with vars.
func (l *Library) Render(name string, vars any) (system, user string, err error) {
	p, ok := l.packs[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPack, name)
	}
	var sb, ub strings.Builder
	if err := p.system.Execute(&sb, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	if err := p.user.Execute(&ub, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return sb.String(), ub.String(), nil
}
