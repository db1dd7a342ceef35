package settings

import (
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultModelsYAML []byte

type Model struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// ModelSelector maps human readable model names to provider identifiers.
// The order of the table is kept, the first entry is the default.
type ModelSelector struct {
	Models []Model `yaml:"models"`
}

func NewDefaultModelSelector() *ModelSelector {
	ret, err := NewModelSelectorFromYAML(strings.NewReader(string(defaultModelsYAML)))
	if err != nil {
		panic(errors.Wrap(err, "embedded models.yaml is invalid"))
	}
	return ret
}

func NewModelSelectorFromYAML(r io.Reader) (*ModelSelector, error) {
	ret := &ModelSelector{}
	if err := yaml.NewDecoder(r).Decode(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode model table")
	}
	if len(ret.Models) == 0 {
		return nil, errors.New("model table is empty")
	}
	seen := map[string]bool{}
	for _, m := range ret.Models {
		if m.Name == "" || m.ID == "" {
			return nil, errors.Errorf("model entry %q needs both a name and an id", m.Name)
		}
		key := strings.ToLower(m.Name)
		if seen[key] {
			return nil, errors.Errorf("duplicate model name %q", m.Name)
		}
		seen[key] = true
	}
	return ret, nil
}

func NewModelSelectorFromFile(path string) (*ModelSelector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open models file %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return NewModelSelectorFromYAML(f)
}

func (m *ModelSelector) Default() Model {
	return m.Models[0]
}

func (m *ModelSelector) Names() []string {
	ret := make([]string, 0, len(m.Models))
	for _, model := range m.Models {
		ret = append(ret, model.Name)
	}
	return ret
}

// Lookup resolves a model by name, case-insensitively. An empty name
// selects the default model. A name containing a slash is taken to be a
// raw provider identifier and passed through.
func (m *ModelSelector) Lookup(name string) (Model, error) {
	if name == "" {
		return m.Default(), nil
	}
	for _, model := range m.Models {
		if strings.EqualFold(model.Name, name) {
			return model, nil
		}
	}
	if strings.Contains(name, "/") {
		return Model{Name: name, ID: name}, nil
	}
	return Model{}, newConfigurationError("model", "unknown model %q, expected one of %s",
		name, strings.Join(m.Names(), ", "))
}
