package factory

import (
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/go-go-golems/xllama/pkg/inference/providers/echo"
	"github.com/go-go-golems/xllama/pkg/inference/providers/openai"
	"github.com/go-go-golems/xllama/pkg/inference/providers/replicate"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/pkg/errors"
)

// NewProviderFromSettings returns the provider selected by the api-type
// setting. Settings are validated first, so a missing credential surfaces as
// a *settings.ConfigurationError.
func NewProviderFromSettings(s *settings.Settings) (inference.Provider, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	switch s.ApiType {
	case settings.ApiTypeReplicate:
		var opts []replicate.Option
		if s.BaseURL != "" {
			opts = append(opts, replicate.WithBaseURL(s.BaseURL))
		}
		ret, err := replicate.NewProvider(s.Credential, opts...)
		if err != nil {
			return nil, err
		}
		return ret, nil

	case settings.ApiTypeOpenAI:
		return openai.NewProvider(s.Credential, s.BaseURL), nil

	case settings.ApiTypeEcho:
		return echo.NewProvider(), nil
	}

	return nil, errors.Errorf("unsupported api type %s", s.ApiType)
}
