// Command interleave explores the bundled example programs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	exitOK        = 0
	exitViolation = 1
	exitError     = 2
)

// Carries the exit code of a command
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

func violation() error {
	return &exitCodeError{code: exitViolation}
}

func failure(err error) error {
	return &exitCodeError{code: exitError, err: err}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Run the command line and return the exit code
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	// Usage errors reported by cobra
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}
