package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalogue []byte

type Stage string

const (
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageFormat   Stage = "format"
)

// Pipelines every catalogue must cover.
var requiredPipelines = []string{"read", "create", "update", "delete"}

type Catalogue struct {
	Schema         string                      `yaml:"schema"`
	Classification string                      `yaml:"classify"`
	Pipelines      map[string]*PipelinePrompts `yaml:"pipelines"`

	compiled map[string]*template.Template
}

type PipelinePrompts struct {
	Generate string `yaml:"generate"`
	Validate string `yaml:"validate"`
	Format   string `yaml:"format"`
}

// Data is what a prompt template can reference.
type Data struct {
	Input   string
	Query   string
	Results string
	Schema  string
}

// Default returns the built-in catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads a catalogue file. An empty path yields the built-in catalogue.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt catalogue: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalogue YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogue) Validate() error {
	if strings.TrimSpace(c.Classification) == "" {
		return fmt.Errorf("catalogue must have a classify prompt")
	}
	for _, name := range requiredPipelines {
		p, ok := c.Pipelines[name]
		if !ok || p == nil {
			return fmt.Errorf("catalogue is missing pipeline %q", name)
		}
		if strings.TrimSpace(p.Generate) == "" {
			return fmt.Errorf("pipeline %q must have a generate prompt", name)
		}
		if strings.TrimSpace(p.Validate) == "" {
			return fmt.Errorf("pipeline %q must have a validate prompt", name)
		}
		if strings.TrimSpace(p.Format) == "" {
			return fmt.Errorf("pipeline %q must have a format prompt", name)
		}
	}
	return nil
}

func (c *Catalogue) compile() error {
	c.compiled = make(map[string]*template.Template)

	add := func(name, text string) error {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return fmt.Errorf("prompt %s: %w", name, err)
		}
		c.compiled[name] = tmpl
		return nil
	}

	if err := add("classify", c.Classification); err != nil {
		return err
	}
	for name, p := range c.Pipelines {
		if p == nil {
			continue
		}
		for stage, text := range map[Stage]string{
			StageGenerate: p.Generate,
			StageValidate: p.Validate,
			StageFormat:   p.Format,
		} {
			if err := add(key(name, stage), text); err != nil {
				return err
			}
		}
	}
	return nil
}

func key(pipeline string, stage Stage) string {
	return pipeline + "." + string(stage)
}

// Classify renders the intent classification prompt.
func (c *Catalogue) Classify(input string) (string, error) {
	return c.render("classify", Data{Input: input})
}

// Render renders one stage of a pipeline's prompts.
func (c *Catalogue) Render(pipeline string, stage Stage, data Data) (string, error) {
	return c.render(key(pipeline, stage), data)
}

func (c *Catalogue) render(name string, data Data) (string, error) {
	tmpl, ok := c.compiled[name]
	if !ok {
		return "", fmt.Errorf("no prompt named %q", name)
	}
	if data.Schema == "" {
		data.Schema = c.Schema
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}
