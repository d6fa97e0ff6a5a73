// Package shelltest provides a recording shell.Runner for tests.
package shelltest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ligopivot/fault"
)

// Response is returned for commands whose joined argv contains Match.
type Response struct {
	Match  string
	Output string
	Fail   bool
}

// Recorder records every command it is asked to run and answers from a list
// of canned responses. Unmatched commands succeed with no output.
type Recorder struct {
	mu        sync.Mutex
	calls     [][]string
	responses []Response
}

func New(responses ...Response) *Recorder {
	return &Recorder{responses: responses}
}

// On adds a canned response. Later responses take precedence.
func (r *Recorder) On(resp Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

func (r *Recorder) Run(ctx context.Context, argv []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, append([]string(nil), argv...))
	line := strings.Join(argv, " ")
	for i := len(r.responses) - 1; i >= 0; i-- {
		resp := r.responses[i]
		if !strings.Contains(line, resp.Match) {
			continue
		}
		if resp.Fail {
			return []byte(resp.Output), &fault.ExternalToolError{
				Argv:   append([]string(nil), argv...),
				Output: resp.Output,
				Err:    errors.New("exit status 1"),
			}
		}
		return []byte(resp.Output), nil
	}
	return nil, nil
}

// Calls returns every recorded argv.
func (r *Recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

// Lines returns every recorded command joined with spaces.
func (r *Recorder) Lines() []string {
	var lines []string
	for _, c := range r.Calls() {
		lines = append(lines, strings.Join(c, " "))
	}
	return lines
}

// Count returns how many recorded commands contain sub.
func (r *Recorder) Count(sub string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, sub) {
			n++
		}
	}
	return n
}
