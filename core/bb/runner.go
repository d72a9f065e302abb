// Package bb drives the Barretenberg command line prover.
//
// Every call is a blocking subprocess. Artifacts are exchanged through the
// filesystem: witnesses in, proof directories with proof_fields.json out.
package bb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
)

const (
	SchemeUltraHonk      = "ultra_honk"
	OutputBytesAndFields = "bytes_and_fields"
	OracleHashKeccak     = "keccak"
	ProofFile            = "proof"
	ProofFieldsFile      = "proof_fields.json"
	VKFile               = "vk"
	VKFieldsFile         = "vk_fields.json"
	DefaultBinary        = "bb"
	defaultHonkRecursion = 1
)

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
		log:    core.NewLogger("bb", ""),
	}
}

// ProveArgs is the argument contract for `bb prove`.
type ProveArgs struct {
	Circuit string
	Witness string
	OutDir  string

	// Scheme is omitted from the command line when empty.
	Scheme string
	// OutputFormat defaults to bytes_and_fields.
	OutputFormat string

	Recursive          bool
	HonkRecursion      int
	InitKZGAccumulator bool

	// OracleHash is "keccak" for proofs that must verify on-chain.
	OracleHash string
}

func (a ProveArgs) Args() []string {
	args := []string{"prove"}
	if a.Scheme != "" {
		args = append(args, "--scheme", a.Scheme)
	}
	format := a.OutputFormat
	if format == "" {
		format = OutputBytesAndFields
	}
	args = append(args,
		"--output_format", format,
		"-b", a.Circuit,
		"-w", a.Witness,
		"-o", a.OutDir,
	)
	if a.HonkRecursion > 0 {
		args = append(args, "--honk_recursion", strconv.Itoa(a.HonkRecursion))
	}
	if a.Recursive {
		args = append(args, "--recursive")
	}
	if a.InitKZGAccumulator {
		args = append(args, "--init_kzg_accumulator")
	}
	if a.OracleHash != "" {
		args = append(args, "--oracle_hash", a.OracleHash)
	}
	return args
}

// VerifyArgs is the argument contract for `bb verify`.
type VerifyArgs struct {
	Proof string
	VK    string

	// Scheme defaults to ultra_honk.
	Scheme     string
	OracleHash string
}

func (a VerifyArgs) Args() []string {
	scheme := a.Scheme
	if scheme == "" {
		scheme = SchemeUltraHonk
	}
	args := []string{"verify", "--scheme", scheme, "-k", a.VK, "-p", a.Proof}
	if a.OracleHash != "" {
		args = append(args, "--oracle_hash", a.OracleHash)
	}
	return args
}

// WriteVKArgs is the argument contract for `bb write_vk`.
type WriteVKArgs struct {
	Circuit    string
	OutDir     string
	OracleHash string
}

func (a WriteVKArgs) Args() []string {
	args := []string{
		"write_vk",
		"--scheme", SchemeUltraHonk,
		"--output_format", OutputBytesAndFields,
		"-b", a.Circuit,
		"-o", a.OutDir,
		"--honk_recursion", strconv.Itoa(defaultHonkRecursion),
	}
	if a.OracleHash != "" {
		args = append(args, "--oracle_hash", a.OracleHash)
	}
	return args
}

type result struct {
	stdout   string
	stderr   string
	exitCode int
}

func (r *Runner) run(ctx context.Context, args []string) (result, error) {
	r.log.Printf("%s %s\n", r.Binary, color.HiBlackString(strings.Join(args, " ")))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: 0,
	}
	if err != nil {
		res.exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.exitCode = exitErr.ExitCode()
		}
	}
	return res, err
}

// Prove runs `bb prove` and leaves the artifacts in args.OutDir.
func (r *Runner) Prove(ctx context.Context, args ProveArgs) error {
	if err := os.MkdirAll(args.OutDir, 0755); err != nil {
		return fmt.Errorf("creating proof output directory: %w", err)
	}
	argv := args.Args()
	res, err := r.run(ctx, argv)
	if err != nil {
		return &ProverInvocationError{Args: argv, ExitCode: res.exitCode, Stderr: res.stderr, Err: err}
	}
	return nil
}

// WriteVK runs `bb write_vk`, producing vk and vk_fields.json in args.OutDir.
func (r *Runner) WriteVK(ctx context.Context, args WriteVKArgs) error {
	if err := os.MkdirAll(args.OutDir, 0755); err != nil {
		return fmt.Errorf("creating vk output directory: %w", err)
	}
	argv := args.Args()
	res, err := r.run(ctx, argv)
	if err != nil {
		return &ProverInvocationError{Args: argv, ExitCode: res.exitCode, Stderr: res.stderr, Err: err}
	}
	return nil
}

// Verify reports whether the proof is valid. The exit status is the verdict;
// only a failure to run bb at all is returned as an error.
func (r *Runner) Verify(ctx context.Context, args VerifyArgs) (bool, error) {
	argv := args.Args()
	res, err := r.run(ctx, argv)
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		r.log.Printf("verification failed (exit code %d)\n", res.exitCode)
		if res.stderr != "" {
			r.log.Println(strings.TrimSpace(res.stderr))
		}
		return false, nil
	}
	return false, &VerifierInvocationError{Args: argv, Err: err}
}

// ReadFields reads a JSON array of hex field strings, as written by bb into
// proof_fields.json and vk_fields.json.
func ReadFields(path string) ([]core.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields, err := DecodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return fields, nil
}

func DecodeFields(data []byte) ([]core.Field, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return core.ParseFields(values)
}

func ReadProofFields(proofDir string) ([]core.Field, error) {
	return ReadFields(filepath.Join(proofDir, ProofFieldsFile))
}
