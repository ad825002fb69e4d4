package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"cdl-sync/internal/identity"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// passwordPrompt returns a function that asks for the identity password on
// the terminal without echo.
func passwordPrompt(username string, w io.Writer) identity.PasswordFunc {
	return func() (string, error) {
		fd := int(os.Stdin.Fd())
		if !isTerminal(fd) {
			return "", fmt.Errorf("no password configured and stdin is not a terminal")
		}
		if _, err := fmt.Fprintf(w, "Password for %s: ", username); err != nil {
			return "", err
		}
		pw, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
}
