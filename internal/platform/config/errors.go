package config

import "errors"

// ConfigurationError reports missing external configuration. It is fatal for the
// component that needs it and is never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// ErrMessagingNotConfigured is returned when the WhatsApp provider settings are absent.
var ErrMessagingNotConfigured = &ConfigurationError{Msg: "whatsapp service is not configured"}

// IsConfigurationError reports whether err is (or wraps) a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
