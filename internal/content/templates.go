package content

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type templateSpec struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type promptTemplate struct {
	system      string
	user        *template.Template
	temperature *float32
	maxTokens   int
}

func (p *promptTemplate) render(data any) (string, error) {
	var b strings.Builder
	if err := p.user.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

type templateSet struct {
	story   *promptTemplate
	analyze *promptTemplate
	ideas   *promptTemplate
	improve *promptTemplate
}

func loadTemplates(raw []byte) (*templateSet, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	build := func(name string) (*promptTemplate, error) {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("template %q missing", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(spec.User)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		return &promptTemplate{
			system:      strings.TrimSpace(spec.System),
			user:        tmpl,
			temperature: spec.Temperature,
			maxTokens:   spec.MaxTokens,
		}, nil
	}

	set := &templateSet{}
	var err error
	if set.story, err = build("story"); err != nil {
		return nil, err
	}
	if set.analyze, err = build("analyze"); err != nil {
		return nil, err
	}
	if set.ideas, err = build("ideas"); err != nil {
		return nil, err
	}
	if set.improve, err = build("improve"); err != nil {
		return nil, err
	}
	return set, nil
}
