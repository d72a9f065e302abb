// Package nargo compiles Noir circuits and executes them to produce witnesses.
package nargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
)

const DefaultBinary = "nargo"

// A Circuit is a Noir package on disk together with its compiled artifact.
type Circuit struct {
	// Package name, which is also the artifact name under target/.
	Name string
	// Directory containing Nargo.toml.
	ProgramDir string
	// Compiled ACIR artifact passed to bb. Defaults to target/<Name>.json.
	Artifact string
}

// NewCircuit assumes the package is named after its directory.
func NewCircuit(programDir string) Circuit {
	return Circuit{
		Name:       filepath.Base(filepath.Clean(programDir)),
		ProgramDir: programDir,
	}
}

func (c Circuit) ArtifactPath() string {
	if c.Artifact != "" {
		return c.Artifact
	}
	return filepath.Join(c.ProgramDir, "target", c.Name+".json")
}

// WitnessError is returned when nargo cannot be started or exits non-zero.
type WitnessError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *WitnessError) Error() string {
	msg := fmt.Sprintf("nargo failed with exit code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimSpace(e.Stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WitnessError) Unwrap() error {
	return e.Err
}

type Runner struct {
	Binary string
	log    *log.Logger
}

func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{
		Binary: binary,
		log:    core.NewLogger("nargo", ""),
	}
}

func (r *Runner) run(ctx context.Context, args []string) error {
	r.log.Printf("%s %s\n", r.Binary, color.HiBlackString(strings.Join(args, " ")))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &WitnessError{Args: args, ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Compile runs `nargo compile` for the circuit package.
func (r *Runner) Compile(ctx context.Context, c Circuit) error {
	return r.run(ctx, []string{"compile", "--program-dir", c.ProgramDir})
}

var proverFileCounter atomic.Uint64

// GenerateWitness writes inputs as a Prover TOML file into the package,
// executes the circuit, and moves the resulting gzipped witness to
// witnessPath. Inputs are encoded with toml struct tags; core.Field values
// encode as hex strings.
func (r *Runner) GenerateWitness(ctx context.Context, c Circuit, inputs any, witnessPath string) error {
	name := fmt.Sprintf("noirbatch_%d_%d", os.Getpid(), proverFileCounter.Add(1))
	proverPath := filepath.Join(c.ProgramDir, name+".toml")

	if err := writeProverFile(proverPath, inputs); err != nil {
		return err
	}
	defer os.Remove(proverPath)

	args := []string{"execute", "--program-dir", c.ProgramDir, "--prover-name", name, name}
	if err := r.run(ctx, args); err != nil {
		return err
	}

	produced := filepath.Join(c.ProgramDir, "target", name+".gz")
	if err := os.MkdirAll(filepath.Dir(witnessPath), 0755); err != nil {
		return fmt.Errorf("creating witness directory: %w", err)
	}
	if err := moveFile(produced, witnessPath); err != nil {
		return fmt.Errorf("moving witness %s: %w", produced, err)
	}
	return nil
}

func writeProverFile(path string, inputs any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating prover file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(inputs); err != nil {
		return fmt.Errorf("encoding circuit inputs: %w", err)
	}
	return nil
}

// moveFile falls back to copying when src and dst are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
