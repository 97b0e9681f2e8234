package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RevCBH/flashrig/internal/tool"
)

// Script is the scripted behaviour of one tool invocation.
type Script struct {
	// Output is delivered in order before the exit event
	Output []tool.Event
	// Code is the exit code
	Code int
	// LaunchErr makes Start fail instead of running the script
	LaunchErr error
}

// Stdout returns an output event for the stdout stream.
func Stdout(text string) tool.Event {
	return tool.Event{Kind: tool.Output, Stream: tool.Stdout, Text: text}
}

// Stderr returns an output event for the stderr stream.
func Stderr(text string) tool.Event {
	return tool.Event{Kind: tool.Output, Stream: tool.Stderr, Text: text}
}

// ScriptedInvoker is a tool.Invoker that replays queued scripts per executable.
type ScriptedInvoker struct {
	mu       sync.Mutex
	scripts  map[string][]Script
	defaults map[string]Script
	calls    []string
}

func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{
		scripts:  make(map[string][]Script),
		defaults: make(map[string]Script),
	}
}

// Stub queues a script for the next invocation of path.
func (s *ScriptedInvoker) Stub(path string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = append(s.scripts[path], script)
}

// StubDefault sets the script used when no queued script remains for path.
func (s *ScriptedInvoker) StubDefault(path string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[path] = script
}

func (s *ScriptedInvoker) Start(ctx context.Context, path string, args []string) (*tool.Invocation, error) {
	key := strings.TrimSpace(path + " " + strings.Join(args, " "))

	s.mu.Lock()
	s.calls = append(s.calls, key)
	queue := s.scripts[path]
	var script Script
	if len(queue) > 0 {
		script = queue[0]
		s.scripts[path] = queue[1:]
	} else if def, ok := s.defaults[path]; ok {
		script = def
	} else {
		s.mu.Unlock()
		return nil, &tool.LaunchError{Path: path, Err: fmt.Errorf("unexpected tool call: %s", key)}
	}
	s.mu.Unlock()

	if script.LaunchErr != nil {
		return nil, &tool.LaunchError{Path: path, Err: script.LaunchErr}
	}

	events := make(chan tool.Event, len(script.Output)+1)
	for _, ev := range script.Output {
		events <- ev
	}
	events <- tool.Event{Kind: tool.Exited, Code: script.Code}
	close(events)

	return tool.NewInvocation(path, args, events, nil), nil
}

// Calls returns every invocation as "path arg1 arg2 ...".
func (s *ScriptedInvoker) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor counts invocations whose executable is path.
func (s *ScriptedInvoker) CallsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call == path || strings.HasPrefix(call, path+" ") {
			count++
		}
	}
	return count
}
