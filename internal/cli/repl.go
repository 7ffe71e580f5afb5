package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context) error
	Enroll(ctx context.Context) error
	List(ctx context.Context) error
	Remove(ctx context.Context, args []string) error
	Enable(ctx context.Context, args []string) error
	Disable(ctx context.Context, args []string) error
	Claim(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Sessions(ctx context.Context) error
}

const helpText = `Available commands:
  add                  add an account (email + optional password)
  enroll               sign in interactively and add the account found
  (l)ist               list accounts
  remove <email>       remove an account and its stored session
  enable <email>       mark an account active again
  disable <email>      exclude an account from claim passes
  claim [email...]     run a claim pass (all active accounts by default)
  history [n]          show claim totals and the n latest entries
  sessions             show remaining lifetime of stored sessions
  exit | quit          leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on EOF or when the user types "exit" or "quit".
//
// Command errors are reported and do not end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("claim %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		var cmdErr error
		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "add":
			cmdErr = a.Add(ctx)

		case "enroll":
			cmdErr = a.Enroll(ctx)

		case "l", "list":
			cmdErr = a.List(ctx)

		case "remove", "rm":
			cmdErr = a.Remove(ctx, args)

		case "enable":
			cmdErr = a.Enable(ctx, args)

		case "disable":
			cmdErr = a.Disable(ctx, args)

		case "claim", "run":
			cmdErr = a.Claim(ctx, args)

		case "history":
			cmdErr = a.History(ctx, args)

		case "sessions":
			cmdErr = a.Sessions(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
