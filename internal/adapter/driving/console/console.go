// Package console is the interactive menu driving adapter over the vault.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/port/driving"
)

const generateKeyword = "generate"

const menu = `
Password Manager
1. Add Password
2. Retrieve Password
3. Delete Password
4. List All Accounts
5. Generate Password
6. View Password History
7. Change Password
8. Check Password Strength
9. Exit
`

// PasswordReader prompts for a password without echoing it.
type PasswordReader func(prompt string) (string, error)

// Option configures a Console.
type Option func(*Console)

// WithPasswordReader reads passwords through fn instead of the line input.
func WithPasswordReader(fn PasswordReader) Option {
	return func(c *Console) { c.readPassword = fn }
}

// Console runs the menu loop against a vault.
type Console struct {
	vault        driving.Vault
	in           *bufio.Scanner
	out          io.Writer
	readPassword PasswordReader
	logger       *slog.Logger
}

// New creates a Console reading commands from in and writing to out.
func New(vault driving.Vault, in io.Reader, out io.Writer, logger *slog.Logger, opts ...Option) *Console {
	c := &Console{
		vault:  vault,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errEndOfInput ends the loop when the input is exhausted mid-prompt.
var errEndOfInput = errors.New("end of input")

// Run shows the menu until the user exits, input ends or ctx is canceled.
// End of input is a clean exit.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.printf("%s\n", menu)
		choice, err := c.prompt("Choose an option: ")
		if err != nil {
			return c.finish(err)
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = c.add(ctx)
		case "2":
			err = c.retrieve()
		case "3":
			err = c.delete(ctx)
		case "4":
			c.list()
		case "5":
			c.generate()
		case "6":
			err = c.history()
		case "7":
			err = c.changePassword(ctx)
		case "8":
			err = c.checkStrength()
		case "9":
			c.printf("Exiting...\n")
			return nil
		default:
			c.printf("Invalid choice. Please try again.\n")
		}
		if err != nil {
			return c.finish(err)
		}
	}
}

func (c *Console) finish(err error) error {
	if errors.Is(err, errEndOfInput) {
		c.printf("\nExiting...\n")
		return nil
	}
	return err
}

func (c *Console) add(ctx context.Context) error {
	accountName, err := c.prompt("Enter account name: ")
	if err != nil {
		return err
	}
	username, err := c.prompt("Enter username: ")
	if err != nil {
		return err
	}
	password, err := c.promptPassword("Enter password (or type 'generate' to generate one): ")
	if err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(password), generateKeyword) {
		password, err = c.vault.GeneratePassword()
		if err != nil {
			c.reportUnexpected("generate password", err)
			return nil
		}
		c.printf("Generated Password: %s\n", password)
	}

	c.printf("Password Strength: %s\n", c.vault.PasswordStrength(password))

	if _, err := c.vault.Add(ctx, strings.TrimSpace(accountName), username, password); err != nil {
		c.reportVaultError("add account", err)
		return nil
	}
	c.printf("Password added successfully!\n")
	return nil
}

func (c *Console) retrieve() error {
	accountName, err := c.prompt("Enter account name: ")
	if err != nil {
		return err
	}
	accountName = strings.TrimSpace(accountName)

	entry, password, err := c.vault.RetrieveWithPassword(accountName)
	if err != nil {
		c.reportVaultError("retrieve account", err)
		return nil
	}

	c.printf("Account: %s\nUsername: %s\nLatest Password: %s\n", entry.AccountName, entry.Username, password)
	return nil
}

func (c *Console) delete(ctx context.Context) error {
	accountName, err := c.prompt("Enter account name: ")
	if err != nil {
		return err
	}

	if err := c.vault.Delete(ctx, strings.TrimSpace(accountName)); err != nil {
		c.reportVaultError("delete account", err)
		return nil
	}
	c.printf("Password deleted successfully!\n")
	return nil
}

func (c *Console) list() {
	summaries := c.vault.List()
	if len(summaries) == 0 {
		c.printf("No accounts stored.\n")
		return
	}
	c.printf("Stored Accounts:\n")
	for _, s := range summaries {
		c.printf("Account: %s, Username: %s\n", s.AccountName, s.Username)
	}
}

func (c *Console) generate() {
	password, err := c.vault.GeneratePassword()
	if err != nil {
		c.reportUnexpected("generate password", err)
		return
	}
	c.printf("Generated Password: %s\nPassword Strength: %s\n", password, c.vault.PasswordStrength(password))
}

func (c *Console) history() error {
	accountName, err := c.prompt("Enter account name: ")
	if err != nil {
		return err
	}
	accountName = strings.TrimSpace(accountName)

	items, err := c.vault.ViewHistory(accountName)
	if err != nil {
		c.reportVaultError("view history", err)
		return nil
	}

	c.printf("Password History for Account: %s\n", accountName)
	for _, item := range items {
		if item.Err != nil {
			c.printf("%d. <unreadable>\n", item.Position+1)
			continue
		}
		c.printf("%d. Password: %s\n", item.Position+1, item.Password)
	}
	return nil
}

func (c *Console) changePassword(ctx context.Context) error {
	accountName, err := c.prompt("Enter account name: ")
	if err != nil {
		return err
	}
	password, err := c.promptPassword("Enter new password (or type 'generate' to generate one): ")
	if err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(password), generateKeyword) {
		password, err = c.vault.GeneratePassword()
		if err != nil {
			c.reportUnexpected("generate password", err)
			return nil
		}
		c.printf("Generated Password: %s\n", password)
	}

	if _, err := c.vault.ChangePassword(ctx, strings.TrimSpace(accountName), password); err != nil {
		c.reportVaultError("change password", err)
		return nil
	}
	c.printf("Password Strength: %s\nPassword changed successfully!\n", c.vault.PasswordStrength(password))
	return nil
}

func (c *Console) checkStrength() error {
	password, err := c.promptPassword("Enter password to check: ")
	if err != nil {
		return err
	}
	c.printf("Password Strength: %s\n", c.vault.PasswordStrength(password))
	return nil
}

func (c *Console) prompt(label string) (string, error) {
	c.printf("%s", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errEndOfInput
	}
	return c.in.Text(), nil
}

func (c *Console) promptPassword(label string) (string, error) {
	if c.readPassword == nil {
		return c.prompt(label)
	}
	password, err := c.readPassword(label)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", errEndOfInput
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func (c *Console) reportVaultError(op string, err error) {
	switch {
	case errors.Is(err, application.ErrAccountNotFound):
		c.printf("Account not found.\n")
	case errors.Is(err, application.ErrDuplicateAccount):
		c.printf("Error: Account name already exists. Please choose a unique name.\n")
	case errors.Is(err, application.ErrPasswordReused):
		c.printf("Error: This password was used before for this account. Choose a new one.\n")
	case errors.Is(err, application.ErrInvalidAccountName):
		c.printf("Error: Account name must not be empty.\n")
	default:
		c.reportUnexpected(op, err)
	}
}

func (c *Console) reportUnexpected(op string, err error) {
	c.logger.Error("console operation failed", "op", op, "error", err)

	var persistErr *application.PersistenceError
	if errors.As(err, &persistErr) {
		c.printf("Error saving vault data. Nothing was changed.\n")
		return
	}
	c.printf("Error: %s failed.\n", op)
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
