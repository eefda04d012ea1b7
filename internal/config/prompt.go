package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// PromptAPIToken asks for the API token on the controlling terminal when
// an email is configured but neither an API token nor an OAuth token is.
// It is a no-op when stdin is not a terminal.
func PromptAPIToken(c *Config, w io.Writer) error {
	if c.OAuthToken != "" || c.APIToken != "" || c.Email == "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil
	}
	if _, err := fmt.Fprintf(w, "API token for %s: ", c.Email); err != nil {
		return err
	}
	tok, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return fmt.Errorf("read api token: %w", err)
	}
	c.APIToken = strings.TrimSpace(string(tok))
	return nil
}
