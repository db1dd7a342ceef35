package factory

import (
	"testing"

	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettings(apiType settings.ApiType, credential string) *settings.Settings {
	models := settings.NewDefaultModelSelector()
	return &settings.Settings{
		ApiType:    apiType,
		Model:      models.Default(),
		Models:     models,
		Generation: settings.NewGenerationParameters(),
		Credential: credential,
	}
}

func TestNewProviderFromSettings(t *testing.T) {
	tests := []struct {
		apiType    settings.ApiType
		credential string
		name       string
	}{
		{settings.ApiTypeReplicate, "r8_token", "replicate"},
		{settings.ApiTypeOpenAI, "sk-token", "openai"},
		{settings.ApiTypeEcho, "", "echo"},
	}
	for _, tt := range tests {
		p, err := NewProviderFromSettings(newSettings(tt.apiType, tt.credential))
		require.NoError(t, err)
		assert.Equal(t, tt.name, p.Name())
	}
}

func TestNewProviderFromSettingsMissingCredential(t *testing.T) {
	for _, apiType := range []settings.ApiType{settings.ApiTypeReplicate, settings.ApiTypeOpenAI} {
		_, err := NewProviderFromSettings(newSettings(apiType, ""))
		var cfgErr *settings.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "api type %s", apiType)
	}
}

func TestNewProviderFromSettingsUnknownApiType(t *testing.T) {
	_, err := NewProviderFromSettings(newSettings("claude", "x"))
	require.Error(t, err)
}
