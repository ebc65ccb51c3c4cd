// Package commands implements the hackcal subcommands.
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
	"gopkg.in/yaml.v3"

	"hackcal/internal/auth"
	"hackcal/internal/config"
)

// HashPassword handles the hash-password subcommand. It prompts for the admin
// username and password and prints the config snippet enabling the admin
// endpoints.
func HashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	username := fs.String("username", "", "Admin username (prompted if empty)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hackcal hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Prints an admin block with an Argon2id password hash for config.yaml.\n")
		fmt.Fprintf(os.Stderr, "Reads the password twice without echo; when stdin is not a terminal,\n")
		fmt.Fprintf(os.Stderr, "reads it once per line instead.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	in := bufio.NewReader(os.Stdin)
	user := *username
	if user == "" {
		fmt.Fprint(os.Stderr, "Enter username: ")
		var err error
		if user, err = readLine(in); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}
	if user == "" {
		return errors.New("username cannot be empty")
	}

	password, err := readPassword(in, "Enter password:   ")
	if err != nil {
		return err
	}
	confirm, err := readPassword(in, "Confirm password: ")
	if err != nil {
		return err
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
	return WriteAdminSnippet(os.Stdout, user, hash)
}

// WriteAdminSnippet writes the admin block of config.yaml.
func WriteAdminSnippet(w io.Writer, username, hash string) error {
	snippet := struct {
		Admin config.AdminConfig `yaml:"admin"`
	}{config.AdminConfig{Username: username, PasswordHash: hash}}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snippet); err != nil {
		return fmt.Errorf("encode admin snippet: %w", err)
	}
	return enc.Close()
}

// readPassword reads a password without echo from a terminal, or a plain
// line otherwise.
func readPassword(in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		pw, err := readLine(in)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return pw, nil
	}

	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
