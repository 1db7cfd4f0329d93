// Package commands holds the CLI subcommands of kalena.
package commands

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"kalena/internal/auth"
	"kalena/internal/config"
)

// Prompter reads the username and password for hash-password.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
}

// HashPassword handles the hash-password subcommand. With -config it
// stores the credentials in that file's basic_auth section; otherwise it
// prints the YAML snippet to paste.
func HashPassword(args []string, p Prompter, out io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Write basic_auth into this config file")
	username := fs.String("username", "", "Username (prompted when empty)")
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: kalena hash-password [OPTIONS]\n\n")
		fmt.Fprintf(out, "Hashes a Basic Auth password with Argon2id.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	user := strings.TrimSpace(*username)
	if user == "" {
		var err error
		if user, err = p.ReadLine("Enter username: "); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		user = strings.TrimSpace(user)
	}
	if user == "" {
		return errors.New("username cannot be empty")
	}

	password, err := p.ReadSecret("Enter password:   ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	confirm, err := p.ReadSecret("Confirm password: ")
	if err != nil {
		return fmt.Errorf("read password confirmation: %w", err)
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if *configPath == "" {
		fmt.Fprintf(out, "basic_auth:\n  username: %s\n  password_hash: %q\n", user, hash)
		return nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: user, PasswordHash: hash}
	if err := cfg.Save(*configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "Basic Auth enabled in %s (user: %s)\n", *configPath, user)
	return nil
}

// TerminalPrompter prompts on the controlling terminal, hiding secrets.
// When stdin is not a terminal it reads plain lines.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (t *TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)
	return t.readLine()
}

func (t *TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)
	fd := int(t.In.Fd())
	if !term.IsTerminal(fd) {
		return t.readLine()
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(t.Out)
	return string(b), err
}

func (t *TerminalPrompter) readLine() (string, error) {
	if t.lines == nil {
		t.lines = bufio.NewReader(t.In)
	}
	line, err := t.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
