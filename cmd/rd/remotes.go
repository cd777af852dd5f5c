package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// remotesFileEnv overrides the location of the remotes file.
const remotesFileEnv = "RECORDS_REMOTES_FILE"

var errNoActiveRemote = errors.New("no active remote; name one or run 'rd remote use <name>'")

// remote is one records server the CLI can talk to.
type remote struct {
	URL      string `toml:"url" json:"url"`
	Token    string `toml:"token,omitempty" json:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty" json:"nats_url,omitempty"`
	PageSize int    `toml:"page_size,omitempty" json:"page_size,omitempty"`
}

// remoteBook is the remotes file: named servers plus the active one.
//
//	active = "prod"
//
//	[remote.prod]
//	url = "https://records.example.com"
//	token = "..."
//	page_size = 50
type remoteBook struct {
	Active  string            `toml:"active"`
	Remotes map[string]remote `toml:"remote"`
}

func remotesPath() (string, error) {
	if p := os.Getenv(remotesFileEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "records", "remotes.toml"), nil
}

// readRemotes loads the remotes file. A missing file is an empty book.
func readRemotes() (*remoteBook, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	book := &remoteBook{}
	if _, err := toml.DecodeFile(path, book); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if book.Remotes == nil {
		book.Remotes = map[string]remote{}
	}
	return book, nil
}

// write replaces the remotes file. The file (0600, from CreateTemp) and its
// directory (0700) hold tokens.
func (b *remoteBook) write() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// set adds or replaces a remote. The first remote added becomes active.
func (b *remoteBook) set(name string, r remote) error {
	if name == "" || strings.ContainsAny(name, " \t\n.") {
		return fmt.Errorf("invalid remote name %q", name)
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote URL must be http(s)://host[:port], got %q", r.URL)
	}
	if r.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", r.PageSize)
	}
	b.Remotes[name] = r
	if b.Active == "" {
		b.Active = name
	}
	return nil
}

func (b *remoteBook) drop(name string) error {
	if _, ok := b.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	delete(b.Remotes, name)
	if b.Active == name {
		b.Active = ""
	}
	return nil
}

func (b *remoteBook) activate(name string) error {
	if _, ok := b.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	b.Active = name
	return nil
}

// lookup returns the named remote, or the active one when name is empty.
func (b *remoteBook) lookup(name string) (string, remote, error) {
	if name == "" {
		if b.Active == "" {
			return "", remote{}, errNoActiveRemote
		}
		name = b.Active
	}
	r, ok := b.Remotes[name]
	if !ok {
		return "", remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

// currentRemote is the active remote, read once per process. Errors leave
// it empty so flag defaults fall through to the built-in values.
var currentRemote = sync.OnceValue(func() remote {
	book, err := readRemotes()
	if err != nil {
		return remote{}
	}
	_, r, err := book.lookup("")
	if err != nil {
		return remote{}
	}
	return r
})
