package settings

import "fmt"

// ConfigurationError is returned for anything that prevents a session from
// starting: missing credentials, out of range parameters, unknown models.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration for %s: %s: %v", e.Setting, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func newConfigurationError(setting string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Setting: setting,
		Reason:  fmt.Sprintf(format, args...),
	}
}
