package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	if len(args) > 0 {
		name += " " + strings.Join(args, " ")
	}
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeExec) Add(context.Context) error    { return f.record("add", nil) }
func (f *fakeExec) Enroll(context.Context) error { return f.record("enroll", nil) }
func (f *fakeExec) List(context.Context) error   { return f.record("list", nil) }
func (f *fakeExec) Remove(_ context.Context, args []string) error {
	return f.record("remove", args)
}
func (f *fakeExec) Enable(_ context.Context, args []string) error {
	return f.record("enable", args)
}
func (f *fakeExec) Disable(_ context.Context, args []string) error {
	return f.record("disable", args)
}
func (f *fakeExec) Claim(_ context.Context, args []string) error { return f.record("claim", args) }
func (f *fakeExec) History(_ context.Context, args []string) error {
	return f.record("history", args)
}
func (f *fakeExec) Sessions(context.Context) error { return f.record("sessions", nil) }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := capturePrintln(t)

	input := strings.Join([]string{
		"help",
		"add",
		"",
		"enroll",
		"l",
		"list",
		"remove a@example.com",
		"ENABLE b@example.com",
		"disable c@example.com",
		"claim",
		"run a@example.com b@example.com",
		"history 5",
		"sessions",
		"foobar",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(0/0 active)" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"add", "enroll", "list", "list",
		"remove a@example.com", "enable b@example.com", "disable c@example.com",
		"claim", "claim a@example.com b@example.com",
		"history 5", "sessions",
	}, exec.calls)
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "Bye!")
	assert.Contains(t, *out, "claim (0/0 active)>")
}

func TestRunREPL_ReportsErrorsAndStopsOnEOF(t *testing.T) {
	out := capturePrintln(t)

	exec := &fakeExec{err: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("list\nadd")))

	assert.Equal(t, []string{"list", "add"}, exec.calls)
	assert.Contains(t, *out, "Error: boom")
	assert.NotContains(t, *out, "Bye!")
}

func TestRunREPL_StopsWhenContextDone(t *testing.T) {
	capturePrintln(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("list\n")))

	assert.Empty(t, exec.calls)
}
