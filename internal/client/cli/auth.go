package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// getSimpleText, getPassword and getConfirmation are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getPassword     = GetPassword
	getConfirmation = GetConfirmation
)

// Register prompts for email, username and password and creates an account.
// The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	p, err := a.authService.Register(ctx, email, username, password)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Registered %s (%s). You can log in now.", p.Username, p.Email))
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, email, password); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			printlnFn("Server unavailable, try again later")
		}
		return err
	}

	a.email = email
	printlnFn("Login successful")
	return nil
}

// Refresh rotates the token pair now.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		return a.checkSession(ctx, err)
	}
	printlnFn("Tokens refreshed")
	return nil
}

// Logout revokes this session. The local session is gone even if the
// server could not be told.
func (a *App) Logout(ctx context.Context) error {
	err := a.authService.Logout(ctx)
	a.email = ""
	if err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

// LogoutAll revokes every session of the account.
func (a *App) LogoutAll(ctx context.Context) error {
	n, err := a.authService.LogoutAll(ctx)
	if err != nil {
		return a.checkSession(ctx, err)
	}
	a.email = ""
	printlnFn(fmt.Sprintf("Logged out of %d session(s)", n))
	return nil
}
