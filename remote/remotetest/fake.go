// Package remotetest provides a scripted remote.Executor for tests.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/projecteru2/shuttle/remote"
)

// compile-time interface check.
var _ remote.Executor = (*Fake)(nil)

// Call is one command seen by the Fake.
type Call struct {
	Host    string
	Command string
	// Stdin holds what a Stream call was fed.
	Stdin string
}

type rule struct {
	host   string
	substr string
	out    string
	err    error
	status int
}

// Fake records every command and answers from rules registered with On and
// Fail. Rules are matched in registration order on host and a substring of
// the rendered command line; unmatched commands succeed with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// New creates an empty Fake.
func New() *Fake { return &Fake{} }

// On scripts the stdout of matching commands. An empty host matches any host.
func (f *Fake) On(host, substr, out string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{host: host, substr: substr, out: out})
	return f
}

// Fail makes matching commands exit with status 1.
func (f *Fake) Fail(host, substr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{host: host, substr: substr, status: 1, err: fmt.Errorf("scripted failure")})
	return f
}

func (f *Fake) Run(ctx context.Context, host string, cmd remote.Command) (string, error) {
	out, err := f.exec(ctx, host, cmd, "")
	return strings.TrimSpace(out), err
}

func (f *Fake) Stream(ctx context.Context, host string, cmd remote.Command, stdin io.Reader, stdout io.Writer) error {
	var in string
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		in = string(b)
	}
	out, err := f.exec(ctx, host, cmd, in)
	if err != nil {
		return err
	}
	if stdout != nil {
		_, err = io.WriteString(stdout, out)
	}
	return err
}

func (f *Fake) exec(ctx context.Context, host string, cmd remote.Command, stdin string) (string, error) {
	line := cmd.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Host: host, Command: line, Stdin: stdin})
	if err := ctx.Err(); err != nil {
		return "", &remote.ExecError{Host: host, Command: line, ExitStatus: -1, Err: err}
	}
	for _, r := range f.rules {
		if (r.host == "" || r.host == host) && strings.Contains(line, r.substr) {
			if r.err != nil {
				return "", &remote.ExecError{Host: host, Command: line, ExitStatus: r.status, Err: r.err}
			}
			return r.out, nil
		}
	}
	return "", nil
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns the recorded command lines, optionally only those sent to host.
func (f *Fake) Commands(host string) []string {
	var out []string
	for _, c := range f.Calls() {
		if host == "" || c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Index returns the position of the first recorded command containing substr, or -1.
func (f *Fake) Index(substr string) int {
	for i, c := range f.Calls() {
		if strings.Contains(c.Command, substr) {
			return i
		}
	}
	return -1
}

// Count returns how many recorded commands contain substr.
func (f *Fake) Count(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.Command, substr) {
			n++
		}
	}
	return n
}
