// Package vm spawns the Smalltalk virtual machine as an opaque child
// process. The engine hands it a working directory holding
// squeak.image/squeak.changes plus a chunk to evaluate, and reads the
// output files the scripted image leaves behind.
package vm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Well-known file names inside a working directory.
const (
	scriptName       = "squeaker-script.st"
	directoryName    = "squeakerDirectory"
	outputName       = "output.txt"
	errorsName       = "errors.txt"
	headlessFlag     = "-headless"
	maxErrorLogBytes = 8 * 1024
)

// RunSpec describes one VM invocation.
type RunSpec struct {
	// VM is the VM executable path.
	VM string
	// WorkDir holds squeak.image and squeak.changes; the child runs there.
	WorkDir string
	// SqueakerDir is written verbatim into the squeakerDirectory file so
	// in-image code can find the user's project directory.
	SqueakerDir string
	// Chunk is the Smalltalk source to evaluate. Empty means interactive:
	// no script is injected and Args are passed straight to the image.
	Chunk string
	// Args are extra image arguments for interactive runs.
	Args []string
	// Headless adds the VM's headless flag.
	Headless bool
}

// Runner runs one VM invocation to completion.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) error
}

// ExitError reports a VM child that exited nonzero. ErrorLog carries
// the tail of the errors.txt the scripted image dumps on a trapped
// Smalltalk exception.
type ExitError struct {
	Code     int
	ErrorLog string
}

func (e *ExitError) Error() string {
	if e.ErrorLog != "" {
		return fmt.Sprintf("vm exited with status %d:\n%s", e.Code, e.ErrorLog)
	}
	return fmt.Sprintf("vm exited with status %d", e.Code)
}

// ExecRunner invokes the real VM executable. The child inherits stdio;
// in-image standard streams are redirected by the injected script.
type ExecRunner struct {
	Log *log.Logger
}

func (r *ExecRunner) Run(ctx context.Context, spec RunSpec) error {
	if err := writeDirectoryFile(spec); err != nil {
		return err
	}

	args := []string{}
	if spec.Headless {
		args = append(args, headlessFlag)
	}
	args = append(args, "squeak.image")

	if spec.Chunk != "" {
		scriptPath := filepath.Join(spec.WorkDir, scriptName)
		script, err := renderScript(spec)
		if err != nil {
			return err
		}
		if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
			return fmt.Errorf("writing vm script: %w", err)
		}
		args = append(args, scriptPath)
	} else {
		args = append(args, spec.Args...)
	}

	r.Log.Debug("invoking vm", "vm", spec.VM, "args", strings.Join(args, " "), "workdir", spec.WorkDir)

	cmd := exec.CommandContext(ctx, spec.VM, args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	r.logOutput(spec)
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), ErrorLog: readErrorLog(spec.WorkDir)}
	}
	return fmt.Errorf("running vm %s: %w", spec.VM, err)
}

func writeDirectoryFile(spec RunSpec) error {
	abs, err := filepath.Abs(spec.SqueakerDir)
	if err != nil {
		return fmt.Errorf("resolving squeaker directory: %w", err)
	}
	path := filepath.Join(spec.WorkDir, directoryName)
	if err := os.WriteFile(path, []byte(abs), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", directoryName, err)
	}
	return nil
}

// logOutput surfaces whatever the in-image script wrote to output.txt.
func (r *ExecRunner) logOutput(spec RunSpec) {
	if spec.Chunk == "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(spec.WorkDir, outputName))
	if err != nil || len(data) == 0 {
		return
	}
	r.Log.Debug("vm output", "output", strings.TrimSpace(string(data)))
}

// readErrorLog returns the tail of errors.txt, if any.
func readErrorLog(workDir string) string {
	data, err := os.ReadFile(filepath.Join(workDir, errorsName))
	if err != nil {
		return ""
	}
	if len(data) > maxErrorLogBytes {
		data = data[len(data)-maxErrorLogBytes:]
	}
	return strings.TrimSpace(string(data))
}
