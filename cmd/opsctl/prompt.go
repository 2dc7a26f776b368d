package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/org/opsconsole/internal/action"
)

var stdin = bufio.NewReader(os.Stdin)

// stdinConfirmer asks on the terminal. Anything but y/yes declines.
type stdinConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (c stdinConfirmer) Confirm(ctx context.Context, p action.Prompt) (bool, error) {
	title := p.Title
	if p.Danger {
		title = "\x1b[31m" + title + "\x1b[0m"
	}
	fmt.Fprintf(c.out, "%s\n%s [y/N]: ", title, p.Message)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	ans := strings.ToLower(strings.TrimSpace(line))
	return ans == "y" || ans == "yes", nil
}

func confirmer() action.Confirmer {
	if assumeYes {
		return action.Preconfirmed(true)
	}
	return stdinConfirmer{in: stdin, out: os.Stderr}
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
