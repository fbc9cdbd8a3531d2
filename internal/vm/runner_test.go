package vm

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// fakeVM writes a shell script standing in for the VM executable.
func fakeVM(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "squeak")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRunnerWritesWorkDirFiles(t *testing.T) {
	workDir := t.TempDir()
	projectDir := t.TempDir()
	r := &ExecRunner{Log: log.New(io.Discard)}

	err := r.Run(context.Background(), RunSpec{
		VM:          fakeVM(t, "exit 0"),
		WorkDir:     workDir,
		SqueakerDir: projectDir,
		Chunk:       "Transcript show: 'x'.",
		Headless:    true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dir, err := os.ReadFile(filepath.Join(workDir, directoryName))
	if err != nil {
		t.Fatalf("squeakerDirectory: %v", err)
	}
	if !filepath.IsAbs(string(dir)) {
		t.Errorf("squeakerDirectory holds %q, want absolute path", dir)
	}

	script, err := os.ReadFile(filepath.Join(workDir, scriptName))
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if !strings.Contains(string(script), "Transcript show: 'x'.") {
		t.Errorf("script missing chunk:\n%s", script)
	}
}

func TestExecRunnerArgs(t *testing.T) {
	workDir := t.TempDir()
	argsFile := filepath.Join(t.TempDir(), "argv")
	r := &ExecRunner{Log: log.New(io.Discard)}

	err := r.Run(context.Background(), RunSpec{
		VM:          fakeVM(t, `echo "$@" > `+argsFile),
		WorkDir:     workDir,
		SqueakerDir: workDir,
		Headless:    true,
		Args:        []string{"extra", "args"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	argv, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(string(argv))
	if got != "-headless squeak.image extra args" {
		t.Errorf("argv = %q", got)
	}
}

func TestExecRunnerExitError(t *testing.T) {
	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, errorsName), []byte("MessageNotUnderstood: foo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := &ExecRunner{Log: log.New(io.Discard)}

	err := r.Run(context.Background(), RunSpec{
		VM:          fakeVM(t, "exit 3"),
		WorkDir:     workDir,
		SqueakerDir: workDir,
		Chunk:       "boom",
	})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("code = %d", exitErr.Code)
	}
	if !strings.Contains(exitErr.ErrorLog, "MessageNotUnderstood") {
		t.Errorf("error log = %q", exitErr.ErrorLog)
	}
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	r := &ExecRunner{Log: log.New(io.Discard)}
	err := r.Run(context.Background(), RunSpec{
		VM:          filepath.Join(t.TempDir(), "no-such-vm"),
		WorkDir:     t.TempDir(),
		SqueakerDir: t.TempDir(),
		Chunk:       "x",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("spawn failure should not be an ExitError: %v", err)
	}
}
