package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/promoclaim/internal/accounts"
	"github.com/dmitrijs2005/promoclaim/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errUsage = errors.New("usage")

// Add prompts for an email and an optional password and stores the account
// as active. An empty password makes a cookie-only account that signs in
// through its stored session or a supervised manual login.
func (a *App) Add(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if email == "" {
		return fmt.Errorf("%w: empty email", common.ErrInvalidEmail)
	}

	password, err := getPassword(a.out, "Enter password (empty for cookie-only): ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accounts.Add(ctx, email, string(password), accounts.StatusActive); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s saved\n", accounts.NormalizeEmail(email))
	return nil
}

// Enroll opens a browser for a supervised sign-in and adds the identity it
// reports as a cookie-only account.
func (a *App) Enroll(ctx context.Context) error {
	if a.enroll == nil {
		return errors.New("enrollment is not available")
	}
	fmt.Fprintln(a.out, "A browser window will open. Sign in there; this waits until the sign-in completes.")

	identity, err := a.enroll(ctx)
	if err != nil {
		return err
	}
	if _, err := a.accounts.Get(identity); err == nil {
		fmt.Fprintf(a.out, "Session refreshed for existing account %s\n", identity)
		return nil
	}
	if err := a.accounts.Add(ctx, identity, "", accounts.StatusActive); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s enrolled\n", identity)
	return nil
}

func (a *App) List(ctx context.Context) error {
	list, err := a.accounts.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No accounts. Use 'add' or 'enroll'.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tSTATUS\tIDENTITY\tSESSION\tCLAIMED\tLAST ACTIVITY")
	for _, acct := range list {
		identity := "-"
		if acct.IdentityKey != "" {
			identity = acct.IdentityKey
		}
		last := "-"
		if !acct.LastActivityAt.IsZero() {
			last = acct.LastActivityAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			acct.Email, acct.Status, identity, a.sessionLabel(acct.Identity()), len(acct.ClaimedItems), last)
	}
	return tw.Flush()
}

func (a *App) sessionLabel(identity string) string {
	if a.sessions == nil {
		return "-"
	}
	days := a.sessions.ExpiryDays(identity)
	if days < 0 {
		return "none"
	}
	return fmt.Sprintf("%dd", days)
}

// emailArg returns the single email argument, prompting when none was given.
func (a *App) emailArg(args []string, prompt string) (string, error) {
	switch len(args) {
	case 0:
		email, err := getSimpleText(a.reader, prompt, a.out)
		if err != nil {
			return "", err
		}
		if email == "" {
			return "", fmt.Errorf("%w: email required", errUsage)
		}
		return email, nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: expected one email, got %s", errUsage, strings.Join(args, " "))
	}
}

func (a *App) Remove(ctx context.Context, args []string) error {
	email, err := a.emailArg(args, "Email to remove")
	if err != nil {
		return err
	}
	if _, err := a.accounts.Get(email); err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Remove %s and its stored session?", email), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.accounts.Remove(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s removed\n", accounts.NormalizeEmail(email))
	return nil
}

func (a *App) Enable(ctx context.Context, args []string) error {
	email, err := a.emailArg(args, "Email to enable")
	if err != nil {
		return err
	}
	if err := a.accounts.Enable(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s is active\n", accounts.NormalizeEmail(email))
	return nil
}

func (a *App) Disable(ctx context.Context, args []string) error {
	email, err := a.emailArg(args, "Email to disable")
	if err != nil {
		return err
	}
	if err := a.accounts.Disable(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %s is disabled\n", accounts.NormalizeEmail(email))
	return nil
}

// Sessions lists every account's stored session lifetime.
func (a *App) Sessions(ctx context.Context) error {
	list, err := a.accounts.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tSESSION")
	for _, acct := range list {
		fmt.Fprintf(tw, "%s\t%s\n", acct.Identity(), a.sessionLabel(acct.Identity()))
	}
	return tw.Flush()
}
