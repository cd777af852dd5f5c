package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// useTempRemotes points the remotes file at a fresh temp path.
func useTempRemotes(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records", "remotes.toml")
	t.Setenv(remotesFileEnv, path)
	return path
}

// runRemote runs a remote subcommand with output captured.
func runRemote(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func TestRemoteBook_WriteRead(t *testing.T) {
	path := useTempRemotes(t)

	in := &remoteBook{Remotes: map[string]remote{}}
	if err := in.set("prod", remote{URL: "https://records.example.com", Token: "tok_abc", NATSURL: "nats://prod:4222", PageSize: 50}); err != nil {
		t.Fatal(err)
	}
	if err := in.set("local", remote{URL: "http://localhost:8080"}); err != nil {
		t.Fatal(err)
	}
	if err := in.write(); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "[remote.prod]") || !strings.Contains(string(raw), "page_size = 50") {
		t.Errorf("unexpected file layout:\n%s", raw)
	}

	got, err := readRemotes()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	name, prod, err := got.lookup("")
	if err != nil || name != "prod" {
		t.Fatalf("active remote = %q, %v; want prod", name, err)
	}
	if prod != in.Remotes["prod"] {
		t.Errorf("prod = %+v, want %+v", prod, in.Remotes["prod"])
	}
}

func TestReadRemotes_NoFile(t *testing.T) {
	useTempRemotes(t)

	book, err := readRemotes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if book.Active != "" || book.Remotes == nil || len(book.Remotes) != 0 {
		t.Errorf("expected an empty book with a non-nil map, got %+v", book)
	}
	if _, _, err := book.lookup(""); !errors.Is(err, errNoActiveRemote) {
		t.Errorf("lookup on an empty book: got %v", err)
	}
}

func TestReadRemotes_Malformed(t *testing.T) {
	path := useTempRemotes(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("active = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readRemotes(); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestRemoteBook_WritePermissions(t *testing.T) {
	path := useTempRemotes(t)

	if err := (&remoteBook{Remotes: map[string]remote{}}).write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	check := func(p string, want os.FileMode) {
		t.Helper()
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	check(path, 0o600)
	check(filepath.Dir(path), 0o700)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the remotes file, found %d entries", len(entries))
	}
}

func TestRemoteBook_SetRejects(t *testing.T) {
	for _, tc := range []struct {
		name, remoteName string
		r                remote
	}{
		{"EmptyName", "", remote{URL: "http://localhost:8080"}},
		{"DottedName", "a.b", remote{URL: "http://localhost:8080"}},
		{"NoScheme", "x", remote{URL: "localhost:8080"}},
		{"WrongScheme", "x", remote{URL: "ftp://host"}},
		{"NegativePageSize", "x", remote{URL: "http://host", PageSize: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := &remoteBook{Remotes: map[string]remote{}}
			if err := b.set(tc.remoteName, tc.r); err == nil {
				t.Fatal("expected an error")
			}
			if len(b.Remotes) != 0 || b.Active != "" {
				t.Fatalf("rejected remote was stored: %+v", b)
			}
		})
	}
}

func TestRemoteCommands(t *testing.T) {
	useTempRemotes(t)
	mustRun := func(cmd *cobra.Command, args ...string) string {
		t.Helper()
		out, err := runRemote(t, cmd, args...)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	// The first remote becomes active; --use switches explicitly.
	mustRun(remoteAddCmd, "local", "http://localhost:8080/")
	mustRun(remoteAddCmd, "staging", "https://staging.example.com")
	book, _ := readRemotes()
	if book.Active != "local" {
		t.Fatalf("Active = %q, want local", book.Active)
	}
	if got := book.Remotes["local"].URL; got != "http://localhost:8080" {
		t.Errorf("trailing slash not trimmed: %q", got)
	}

	mustRun(remoteUseCmd, "staging")

	out := mustRun(remoteListCmd)
	if !strings.Contains(out, "* staging") || !strings.Contains(out, "  local") {
		t.Errorf("list missing active marker; got:\n%s", out)
	}
	if strings.Index(out, "local") > strings.Index(out, "staging") {
		t.Errorf("expected remotes sorted by name; got:\n%s", out)
	}

	out = mustRun(remoteShowCmd)
	if !strings.Contains(out, "staging") || !strings.Contains(out, "https://staging.example.com") {
		t.Errorf("show without a name should describe the active remote; got:\n%s", out)
	}

	out = mustRun(remoteRemoveCmd, "staging")
	if !strings.Contains(out, "No remote is active now.") {
		t.Errorf("expected a note about the cleared active remote; got:\n%s", out)
	}
	book, _ = readRemotes()
	if _, ok := book.Remotes["staging"]; ok || book.Active != "" {
		t.Errorf("staging should be gone and nothing active, got %+v", book)
	}
	if _, err := runRemote(t, remoteShowCmd); !errors.Is(err, errNoActiveRemote) {
		t.Errorf("show with nothing active: got %v", err)
	}
}

func TestRemoteShowJSON_MasksToken(t *testing.T) {
	useTempRemotes(t)
	book := &remoteBook{Remotes: map[string]remote{}}
	if err := book.set("prod", remote{URL: "https://records.example.com", Token: "tok_verylongsecret", PageSize: 25}); err != nil {
		t.Fatal(err)
	}
	if err := book.write(); err != nil {
		t.Fatal(err)
	}

	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	out, err := runRemote(t, remoteShowCmd, "prod")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("expected JSON, got %q: %v", out, err)
	}
	if got["name"] != "prod" || got["active"] != true || got["token"] != "tok_very**********" || got["page_size"] != float64(25) {
		t.Errorf("unexpected remote JSON: %v", got)
	}
}

func TestRemoteErrorCases(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{"UseUnknown", remoteUseCmd, []string{"ghost"}},
		{"RemoveUnknown", remoteRemoveCmd, []string{"ghost"}},
		{"ShowUnknown", remoteShowCmd, []string{"ghost"}},
		{"AddBadURL", remoteAddCmd, []string{"x", "not a url"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := useTempRemotes(t)
			if _, err := runRemote(t, tc.cmd, tc.args...); err == nil {
				t.Fatal("expected error, got nil")
			}
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("a failed command must not write the remotes file")
			}
		})
	}
}

func TestMaskToken(t *testing.T) {
	for in, want := range map[string]string{
		"":                   "",
		"short":              "short",
		"tok_verylongsecret": "tok_very**********",
	} {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
