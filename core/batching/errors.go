package batching

import "fmt"

// ConfigurationError reports unusable batch inputs or settings. It is always
// returned before any subprocess is started.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// artifactsError names the artifact directory a failed batch left behind.
func artifactsError(dir string, err error) error {
	return fmt.Errorf("batch failed, artifacts kept in %s: %w", dir, err)
}

func errShortProof(n int) error {
	return fmt.Errorf("batch proof has %d fields, expected a public input and a proof", n)
}
