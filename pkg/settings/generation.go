package settings

import (
	"github.com/huandu/go-clone"
	"github.com/rs/zerolog"
)

const (
	DefaultTemperature       = 0.1
	DefaultTopP              = 0.9
	DefaultMaxLength         = 120
	DefaultRepetitionPenalty = 1.0

	MinTemperature = 0.01
	MaxTemperature = 1.0
	MinTopP        = 0.01
	MaxTopP        = 1.0
	MinMaxLength   = 32
	MaxMaxLength   = 128
)

// GenerationParameters are the sampling options forwarded to the model.
// RepetitionPenalty is always 1.
type GenerationParameters struct {
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP              float64 `yaml:"top_p" mapstructure:"top-p"`
	MaxLength         int     `yaml:"max_length" mapstructure:"max-length"`
	RepetitionPenalty float64 `yaml:"repetition_penalty" mapstructure:"-"`
}

func NewGenerationParameters() *GenerationParameters {
	return &GenerationParameters{
		Temperature:       DefaultTemperature,
		TopP:              DefaultTopP,
		MaxLength:         DefaultMaxLength,
		RepetitionPenalty: DefaultRepetitionPenalty,
	}
}

func (g *GenerationParameters) Validate() error {
	if g.Temperature < MinTemperature || g.Temperature > MaxTemperature {
		return newConfigurationError("temperature", "%v is outside [%v, %v]", g.Temperature, MinTemperature, MaxTemperature)
	}
	if g.TopP < MinTopP || g.TopP > MaxTopP {
		return newConfigurationError("top-p", "%v is outside [%v, %v]", g.TopP, MinTopP, MaxTopP)
	}
	if g.MaxLength < MinMaxLength || g.MaxLength > MaxMaxLength {
		return newConfigurationError("max-length", "%d is outside [%d, %d]", g.MaxLength, MinMaxLength, MaxMaxLength)
	}
	if g.RepetitionPenalty != DefaultRepetitionPenalty {
		return newConfigurationError("repetition-penalty", "must be %v, got %v", DefaultRepetitionPenalty, g.RepetitionPenalty)
	}
	return nil
}

func (g *GenerationParameters) Clone() *GenerationParameters {
	return clone.Clone(g).(*GenerationParameters)
}

func (g GenerationParameters) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("temperature", g.Temperature).
		Float64("top_p", g.TopP).
		Int("max_length", g.MaxLength).
		Float64("repetition_penalty", g.RepetitionPenalty)
}
