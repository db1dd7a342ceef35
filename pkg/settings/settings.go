package settings

import (
	"strings"

	"github.com/go-go-golems/xllama/pkg/security"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type ApiType string

const (
	ApiTypeReplicate ApiType = "replicate"
	ApiTypeOpenAI    ApiType = "openai"
	ApiTypeEcho      ApiType = "echo"
)

const (
	ReplicateTokenEnv = "REPLICATE_API_TOKEN"
	OpenAIKeyEnv      = "OPENAI_API_KEY"
)

var ApiTypes = []ApiType{ApiTypeReplicate, ApiTypeOpenAI, ApiTypeEcho}

// NeedsCredential reports whether the provider refuses to start without an API key.
func (a ApiType) NeedsCredential() bool {
	return a == ApiTypeReplicate || a == ApiTypeOpenAI
}

func (a ApiType) CredentialEnv() string {
	switch a {
	case ApiTypeReplicate:
		return ReplicateTokenEnv
	case ApiTypeOpenAI:
		return OpenAIKeyEnv
	case ApiTypeEcho:
		return ""
	}
	return ""
}

// Settings is everything needed to start a chat session.
type Settings struct {
	ApiType           ApiType
	Model             Model
	Models            *ModelSelector
	Generation        *GenerationParameters
	Preamble          string
	Greeting          string
	StrictAlternation bool
	BaseURL           string
	// AllowLocalEndpoint lets BaseURL use plain http and local network
	// addresses, for self-hosted model servers.
	AllowLocalEndpoint bool
	Credential         string
}

func (s *Settings) Clone() *Settings {
	ret := *s
	ret.Generation = s.Generation.Clone()
	return &ret
}

// Validate checks the parameter ranges and that a credential is present for
// providers that need one.
func (s *Settings) Validate() error {
	found := false
	for _, t := range ApiTypes {
		if s.ApiType == t {
			found = true
			break
		}
	}
	if !found {
		return newConfigurationError("api-type", "unknown api type %q", s.ApiType)
	}
	if s.Generation == nil {
		return newConfigurationError("generation", "missing generation parameters")
	}
	if err := s.Generation.Validate(); err != nil {
		return err
	}
	if s.Model.ID == "" {
		return newConfigurationError("model", "no model selected")
	}
	if s.BaseURL != "" {
		err := security.ValidateEndpoint(s.BaseURL, security.EndpointPolicy{
			AllowHTTP:          s.AllowLocalEndpoint,
			AllowLocalNetworks: s.AllowLocalEndpoint,
		})
		if err != nil {
			return &ConfigurationError{Setting: "base-url", Reason: "endpoint refused", Err: err}
		}
	}
	if s.ApiType.NeedsCredential() && strings.TrimSpace(s.Credential) == "" {
		return newConfigurationError(s.ApiType.CredentialEnv(),
			"the %s provider needs an API token, set %s", s.ApiType, s.ApiType.CredentialEnv())
	}
	return nil
}

// NewSettingsFromViper reads the settings from flags, environment and config
// file values that have been bound to v. The result is validated.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	models := NewDefaultModelSelector()
	if path := v.GetString("models-file"); path != "" {
		m, err := NewModelSelectorFromFile(path)
		if err != nil {
			return nil, &ConfigurationError{Setting: "models-file", Reason: "could not load model table", Err: err}
		}
		models = m
	}

	model, err := models.Lookup(v.GetString("model"))
	if err != nil {
		return nil, err
	}

	gen := NewGenerationParameters()
	if v.IsSet("temperature") {
		gen.Temperature = v.GetFloat64("temperature")
	}
	if v.IsSet("top-p") {
		gen.TopP = v.GetFloat64("top-p")
	}
	if v.IsSet("max-length") {
		gen.MaxLength = v.GetInt("max-length")
	}

	apiType := ApiType(strings.ToLower(v.GetString("api-type")))
	if apiType == "" {
		apiType = ApiTypeReplicate
	}

	s := &Settings{
		ApiType:            apiType,
		Model:              model,
		Models:             models,
		Generation:         gen,
		Preamble:           v.GetString("preamble"),
		Greeting:           v.GetString("greeting"),
		StrictAlternation:  v.GetBool("strict-alternation"),
		BaseURL:            v.GetString("base-url"),
		AllowLocalEndpoint: v.GetBool("allow-local-base-url"),
	}
	if env := apiType.CredentialEnv(); env != "" {
		s.Credential = v.GetString(env)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("api_type", string(s.ApiType)).
		Str("model", s.Model.Name).
		Str("model_id", s.Model.ID).
		Object("generation", s.Generation).
		Msg("loaded settings")

	return s, nil
}

// BindCredentials makes the provider tokens readable through v under their
// environment variable names, without the config prefix.
func BindCredentials(v *viper.Viper) error {
	for _, env := range []string{ReplicateTokenEnv, OpenAIKeyEnv} {
		if err := v.BindEnv(env, env); err != nil {
			return errors.Wrapf(err, "could not bind %s", env)
		}
	}
	return nil
}
