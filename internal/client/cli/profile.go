package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
)

// Me prints the signed-in user's profile.
func (a *App) Me(ctx context.Context) error {
	p, err := a.authService.Me(ctx)
	if err != nil {
		return a.checkSession(ctx, err)
	}
	printProfile(p)
	return nil
}

// UpdateProfile asks for a new email, username and password. Empty answers
// keep the current value.
func (a *App) UpdateProfile(ctx context.Context) error {
	var upd pb.UpdateProfileRequest

	email, err := getSimpleText(a.reader, "New email (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}
	if email != "" {
		upd.Email = &email
	}

	username, err := getSimpleText(a.reader, "New username (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}
	if username != "" {
		upd.Username = &username
	}

	change, err := getConfirmation(a.reader, "Change password?", os.Stdout)
	if err != nil {
		return err
	}
	if change {
		pw, err := getPassword(os.Stdout)
		if err != nil {
			return err
		}
		password := string(pw)
		common.WipeByteArray(pw)
		upd.Password = &password
	}

	if upd.Email == nil && upd.Username == nil && upd.Password == nil {
		printlnFn("Nothing to change")
		return nil
	}

	p, err := a.authService.UpdateProfile(ctx, &upd)
	if err != nil {
		return a.checkSession(ctx, err)
	}
	a.email = p.Email
	printProfile(p)
	return nil
}

// Sessions lists the account's live sessions.
func (a *App) Sessions(ctx context.Context) error {
	sessions, err := a.authService.Sessions(ctx)
	if err != nil {
		return a.checkSession(ctx, err)
	}
	if len(sessions) == 0 {
		printlnFn("No active sessions")
		return nil
	}
	for _, s := range sessions {
		printlnFn(fmt.Sprintf("%s…  %-15s  %-30s  expires %s",
			s.TokenPrefix, s.ClientIP, s.UserAgent, s.ExpiresAt.Local().Format(time.DateTime)))
	}
	return nil
}

func printProfile(p *pb.Profile) {
	printlnFn(fmt.Sprintf("ID:       %s", p.ID))
	printlnFn(fmt.Sprintf("Email:    %s", p.Email))
	printlnFn(fmt.Sprintf("Username: %s", p.Username))
	printlnFn(fmt.Sprintf("Created:  %s", p.CreatedAt.Local().Format(time.DateTime)))
}
