package conversations

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtinPacks embed.FS

// StepDelay is a yaml-decodable duration ("2h", "24h").
type StepDelay time.Duration

func (d *StepDelay) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid step delay %q: %w", value.Value, err)
	}
	*d = StepDelay(parsed)
	return nil
}

// TemplateStep is one scripted message in a pack. Delay is measured from the
// previous step's dispatch.
type TemplateStep struct {
	Delay   StepDelay `yaml:"delay"`
	Subject string    `yaml:"subject"`
	Body    string    `yaml:"body"`
}

// Render substitutes the lead's name into the step.
func (s TemplateStep) Render(leadName string) (subject, body string) {
	name := leadName
	if name == "" {
		name = "there"
	}
	subject = strings.ReplaceAll(s.Subject, "{{name}}", name)
	body = strings.ReplaceAll(s.Body, "{{name}}", name)
	return subject, body
}

// TemplatePack is an ordered scripted sequence for the initial outreach phase.
type TemplatePack struct {
	Name  string         `yaml:"name"`
	Steps []TemplateStep `yaml:"steps"`
}

// Step returns the step at the given zero-based stage.
func (p TemplatePack) Step(stage int) (TemplateStep, bool) {
	if stage < 0 || stage >= len(p.Steps) {
		return TemplateStep{}, false
	}
	return p.Steps[stage], true
}

// TemplateLibrary holds the built-in packs plus any operator-provided
// overrides loaded from a directory. Lookup by pack name, falling back to the
// default pack.
type TemplateLibrary struct {
	packs map[string]TemplatePack
}

const defaultPackName = "default"

// NewTemplateLibrary loads the embedded packs and, when dir is non-empty, any
// *.yaml packs under it. Directory packs override embedded ones by name.
func NewTemplateLibrary(dir string) (*TemplateLibrary, error) {
	lib := &TemplateLibrary{packs: map[string]TemplatePack{}}

	entries, err := fs.Glob(builtinPacks, "templates/*.yaml")
	if err != nil {
		return nil, err
	}
	for _, name := range entries {
		data, err := builtinPacks.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := lib.add(data); err != nil {
			return nil, fmt.Errorf("embedded pack %s: %w", name, err)
		}
	}

	if dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, err
			}
			if err := lib.add(data); err != nil {
				return nil, fmt.Errorf("pack %s: %w", file, err)
			}
		}
	}

	if _, ok := lib.packs[defaultPackName]; !ok {
		return nil, fmt.Errorf("no %q template pack found", defaultPackName)
	}
	return lib, nil
}

func (l *TemplateLibrary) add(data []byte) error {
	var pack TemplatePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return err
	}
	if pack.Name == "" {
		return fmt.Errorf("template pack missing name")
	}
	if len(pack.Steps) == 0 {
		return fmt.Errorf("template pack %q has no steps", pack.Name)
	}
	l.packs[pack.Name] = pack
	return nil
}

// Pack returns the named pack, or the default pack when the name is unknown
// or empty.
func (l *TemplateLibrary) Pack(name string) TemplatePack {
	if pack, ok := l.packs[name]; ok {
		return pack
	}
	return l.packs[defaultPackName]
}
