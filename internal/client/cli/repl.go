package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Me(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	Sessions(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the authkeeper CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF or when the user types
// "exit" or "quit".
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          authenticate
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - me             show the profile
//	  - update         change email, username or password
//	  - sessions       list live sessions
//	  - refresh        rotate the token pair
//	  - logout         end this session
//	  - logoutall      end every session
//	  - exit | quit    leave the program
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ak> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, update, sessions, refresh, logout, logoutall, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "me", "update", "sessions", "refresh", "logout", "logoutall":
			if !a.isLoggedIn() {
				printlnFn("Please log in first")
				continue
			}
			cmdErr = dispatchSessionCommand(ctx, a, cmd)

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

func dispatchSessionCommand(ctx context.Context, a execIface, cmd string) error {
	switch cmd {
	case "me":
		return a.Me(ctx)
	case "update":
		return a.UpdateProfile(ctx)
	case "sessions":
		return a.Sessions(ctx)
	case "refresh":
		return a.Refresh(ctx)
	case "logout":
		return a.Logout(ctx)
	default:
		return a.LogoutAll(ctx)
	}
}
