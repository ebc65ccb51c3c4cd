package commands

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"hackcal/internal/auth"
	"hackcal/internal/config"
)

func TestWriteAdminSnippet(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteAdminSnippet(&buf, "admin", hash); err != nil {
		t.Fatalf("WriteAdminSnippet() failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "admin:\n  username: admin\n") {
		t.Fatalf("unexpected snippet:\n%s", buf.String())
	}

	// The snippet must load as part of a config file.
	var cfg config.Config
	if err := yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		t.Fatalf("snippet is not valid config YAML: %v", err)
	}
	if !cfg.AdminEnabled() {
		t.Fatal("expected admin to be enabled by the snippet")
	}
	ok, err := auth.VerifyPassword("s3cret", cfg.Admin.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("hash did not survive the round trip: %v", err)
	}
}

func TestReadLine(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("alice\r\nlast"))

	first, err := readLine(in)
	if err != nil || first != "alice" {
		t.Fatalf("first line = %q, %v", first, err)
	}
	second, err := readLine(in)
	if err != nil || second != "last" {
		t.Fatalf("unterminated last line = %q, %v", second, err)
	}
	if _, err := readLine(in); err == nil {
		t.Fatal("expected EOF after input is exhausted")
	}
}
