package jobfile

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kballard/go-shellquote"
)

// DefaultRunners are the command tokens that mark the start of the wrapped command.
var DefaultRunners = []string{"testflo", "pytest", "python", "python3"}

// Invocation is the immutable input of a single qsubrun call.
type Invocation struct {
	NumProcs int    // Number of processes (MPI slots) requested
	Command  string // Command line written verbatim into the job file
	TestSpec string // Dotted test specification, used only for naming
	PID      int    // Identifier of the invoking process
}

// NewInvocation validates its inputs and returns an Invocation.
func NewInvocation(numProcs int, command, testSpec string, pid int) (Invocation, error) {
	if numProcs < 1 {
		return Invocation{}, fmt.Errorf("%w: got %d", ErrInvalidProcessCount, numProcs)
	}
	if strings.TrimSpace(command) == "" {
		return Invocation{}, ErrMissingCommand
	}
	if strings.ContainsAny(command, "\r\n") {
		return Invocation{}, fmt.Errorf("%w: command spans more than one line", ErrInvalidCommand)
	}
	return Invocation{
		NumProcs: numProcs,
		Command:  command,
		TestSpec: testSpec,
		PID:      pid,
	}, nil
}

// UseMPI reports whether the command runs under the MPI launcher.
// MPI is used iff more than one process is requested.
func (inv Invocation) UseMPI() bool {
	return inv.NumProcs > 1
}

// JobName derives the scheduler job name from a test specification:
// the text after the last ".". A spec without "." is returned unchanged,
// and an empty spec yields "". Whitespace and control characters become
// "_" so the name stays on its -N line.
func JobName(testSpec string) string {
	name := testSpec
	if i := strings.LastIndex(testSpec, "."); i >= 0 {
		name = testSpec[i+1:]
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

// SplitCommand finds the first token whose base name is a known runner.
// The command is that token and everything after it; the tokens before it
// are returned as skipped. Without a runner every token is the command.
func SplitCommand(tokens []string, runners []string) (command []string, skipped []string) {
	for i, tok := range tokens {
		if isRunner(tok, runners) {
			return tokens[i:], tokens[:i]
		}
	}
	return tokens, nil
}

func isRunner(token string, runners []string) bool {
	base := filepath.Base(token)
	for _, r := range runners {
		if r != "" && (token == r || base == r) {
			return true
		}
	}
	return false
}

// TestSpecFromTokens returns the trailing token of a command, or "" when the
// command is just the runner.
func TestSpecFromTokens(tokens []string) string {
	if len(tokens) < 2 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// CommandFromTokens joins command tokens into a shell command line,
// quoting only where a token needs it.
func CommandFromTokens(tokens []string) string {
	return shellquote.Join(tokens...)
}

// CommandFromString tokenizes a raw command string to find its test spec.
// The command itself is kept verbatim.
func CommandFromString(raw string) (command string, testSpec string, err error) {
	tokens, err := shellquote.Split(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(tokens) == 0 {
		return "", "", ErrMissingCommand
	}
	return strings.TrimSpace(raw), TestSpecFromTokens(tokens), nil
}
