package bb

import (
	"fmt"
	"strings"
)

// ProverInvocationError is returned when bb prove or bb write_vk cannot be
// started or exits non-zero.
type ProverInvocationError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProverInvocationError) Error() string {
	msg := fmt.Sprintf("bb failed with exit code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimSpace(e.Stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProverInvocationError) Unwrap() error {
	return e.Err
}

// VerifierInvocationError is returned when bb verify could not be run at all.
// A proof that fails verification is not an error.
type VerifierInvocationError struct {
	Args []string
	Err  error
}

func (e *VerifierInvocationError) Error() string {
	return fmt.Sprintf("failed to start bb verify: %s", e.Err)
}

func (e *VerifierInvocationError) Unwrap() error {
	return e.Err
}
