package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationDefaultsAreValid(t *testing.T) {
	g := NewGenerationParameters()
	assert.Equal(t, 0.1, g.Temperature)
	assert.Equal(t, 0.9, g.TopP)
	assert.Equal(t, 120, g.MaxLength)
	assert.Equal(t, 1.0, g.RepetitionPenalty)
	require.NoError(t, g.Validate())
}

func TestGenerationValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *GenerationParameters)
		setting string
	}{
		{"temperature too low", func(g *GenerationParameters) { g.Temperature = 0 }, "temperature"},
		{"temperature too high", func(g *GenerationParameters) { g.Temperature = 1.5 }, "temperature"},
		{"top_p too low", func(g *GenerationParameters) { g.TopP = 0.001 }, "top-p"},
		{"max_length too short", func(g *GenerationParameters) { g.MaxLength = 16 }, "max-length"},
		{"max_length too long", func(g *GenerationParameters) { g.MaxLength = 129 }, "max-length"},
		{"repetition penalty", func(g *GenerationParameters) { g.RepetitionPenalty = 1.2 }, "repetition-penalty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerationParameters()
			tt.mutate(g)
			err := g.Validate()
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}
}

func TestGenerationBoundsAreInclusive(t *testing.T) {
	g := &GenerationParameters{Temperature: 0.01, TopP: 1, MaxLength: 32, RepetitionPenalty: 1}
	require.NoError(t, g.Validate())
	g = &GenerationParameters{Temperature: 1, TopP: 0.01, MaxLength: 128, RepetitionPenalty: 1}
	require.NoError(t, g.Validate())
}

func TestGenerationClone(t *testing.T) {
	g := NewGenerationParameters()
	c := g.Clone()
	c.Temperature = 0.5
	assert.Equal(t, 0.1, g.Temperature)
	assert.Equal(t, 0.5, c.Temperature)
}

func TestDefaultModelSelector(t *testing.T) {
	m := NewDefaultModelSelector()
	assert.Equal(t, []string{"Llama2-7B", "Llama2-13B"}, m.Names())
	assert.Equal(t, "Llama2-7B", m.Default().Name)
	assert.Equal(t,
		"a16z-infra/llama7b-v2-chat:4f0a4744c7295c024a1de15e1a63c880d3da035fa1f49bfd344fe076074c8eea",
		m.Default().ID)
}

func TestModelLookup(t *testing.T) {
	m := NewDefaultModelSelector()

	got, err := m.Lookup("llama2-13b")
	require.NoError(t, err)
	assert.Equal(t,
		"a16z-infra/llama13b-v2-chat:df7690f1994d94e96ad9d568eac121aecf50684a0b0963b25a41cc40061269e5",
		got.ID)

	got, err = m.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "Llama2-7B", got.Name)

	got, err = m.Lookup("meta/llama-2-70b-chat")
	require.NoError(t, err)
	assert.Equal(t, "meta/llama-2-70b-chat", got.ID)

	_, err = m.Lookup("gpt-5")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "model", cfgErr.Setting)
}

func TestModelSelectorFromYAML(t *testing.T) {
	_, err := NewModelSelectorFromYAML(strings.NewReader("models: []\n"))
	require.Error(t, err)

	_, err = NewModelSelectorFromYAML(strings.NewReader("models:\n  - name: a\n    id: x/a\n  - name: A\n    id: x/b\n"))
	require.Error(t, err)

	m, err := NewModelSelectorFromYAML(strings.NewReader("models:\n  - name: tiny\n    id: local/tiny\n"))
	require.NoError(t, err)
	assert.Equal(t, "tiny", m.Default().Name)
}

func TestNewSettingsFromViperMissingCredential(t *testing.T) {
	v := viper.New()
	v.Set("api-type", "replicate")

	_, err := NewSettingsFromViper(v)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ReplicateTokenEnv, cfgErr.Setting)
}

func TestNewSettingsFromViperEchoNeedsNoCredential(t *testing.T) {
	v := viper.New()
	v.Set("api-type", "echo")
	v.Set("model", "Llama2-13B")
	v.Set("temperature", 0.5)

	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ApiTypeEcho, s.ApiType)
	assert.Equal(t, "Llama2-13B", s.Model.Name)
	assert.Equal(t, 0.5, s.Generation.Temperature)
	assert.Equal(t, 0.9, s.Generation.TopP)
}

func TestNewSettingsFromViperReplicate(t *testing.T) {
	v := viper.New()
	v.Set(ReplicateTokenEnv, "r8_test")

	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ApiTypeReplicate, s.ApiType)
	assert.Equal(t, "r8_test", s.Credential)
	assert.Equal(t, "Llama2-7B", s.Model.Name)
}

func TestNewSettingsFromViperRejectsRanges(t *testing.T) {
	v := viper.New()
	v.Set("api-type", "echo")
	v.Set("max-length", 500)

	_, err := NewSettingsFromViper(v)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "max-length", cfgErr.Setting)
}

func TestNewSettingsFromViperModelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - name: Local\n    id: local/llama\n"), 0o600))

	v := viper.New()
	v.Set("api-type", "echo")
	v.Set("models-file", path)

	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "local/llama", s.Model.ID)

	v.Set("models-file", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = NewSettingsFromViper(v)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "models-file", cfgErr.Setting)
}

func TestSettingsCloneIsDeep(t *testing.T) {
	s := &Settings{ApiType: ApiTypeEcho, Generation: NewGenerationParameters()}
	c := s.Clone()
	c.Generation.MaxLength = 64
	assert.Equal(t, 120, s.Generation.MaxLength)
}

func TestNewSettingsFromViperBaseURL(t *testing.T) {
	v := viper.New()
	v.Set("api-type", "openai")
	v.Set(OpenAIKeyEnv, "sk-test")
	v.Set("base-url", "http://localhost:8080/v1")

	_, err := NewSettingsFromViper(v)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "base-url", cfgErr.Setting)

	v.Set("allow-local-base-url", true)
	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", s.BaseURL)

	v.Set("base-url", "https://llama.example.com/v1")
	v.Set("allow-local-base-url", false)
	_, err = NewSettingsFromViper(v)
	require.NoError(t, err)
}
