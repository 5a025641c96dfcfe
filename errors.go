package azddns

import "fmt"

// LookupError is a failed observation. The observation is treated as absent.
type LookupError struct {
	Source Source
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup failed: %s", e.Source, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ProviderWriteError means the record set could not be created or updated.
// Local state is left untouched when it is returned.
type ProviderWriteError struct {
	Err error
}

func (e *ProviderWriteError) Error() string {
	return fmt.Sprintf("provider write failed: %s", e.Err)
}

func (e *ProviderWriteError) Unwrap() error { return e.Err }

// NotificationError never affects DNS state.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed: %s", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration: %s", e.Err)
	}
	return fmt.Sprintf("configuration %q: %s", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
