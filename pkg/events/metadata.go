package events

// LLMInferenceData is the generation context attached to every event of a request.
type LLMInferenceData struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model,omitempty"`
	ModelID     string   `json:"model_id,omitempty" yaml:"model_id,omitempty" mapstructure:"model_id,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" mapstructure:"top_p,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty" yaml:"max_length,omitempty" mapstructure:"max_length,omitempty"`
	DurationMs  *int64   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty" mapstructure:"duration_ms,omitempty"`
}
