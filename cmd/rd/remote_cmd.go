package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage the servers rd talks to",
	GroupID: "system",
	Long: `Remotes are named records servers kept in $XDG_CONFIG_HOME/records/remotes.toml
(override with RECORDS_REMOTES_FILE). The active remote supplies the defaults
for --url, --token, the NATS URL of rd watch and the page size of rd list.`,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		r := remote{URL: strings.TrimRight(args[1], "/")}
		r.Token, _ = f.GetString("token")
		r.NATSURL, _ = f.GetString("nats")
		r.PageSize, _ = f.GetInt("page-size")
		activate, _ := f.GetBool("use")

		return editRemotes(func(b *remoteBook) error {
			if err := b.set(args[0], r); err != nil {
				return err
			}
			if activate {
				b.Active = args[0]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved remote %s -> %s\n", ui.RenderAccent(args[0]), r.URL)
			return nil
		})
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRemotes(func(b *remoteBook) error {
			wasActive := b.Active == args[0]
			if err := b.drop(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed remote %s\n", ui.RenderAccent(args[0]))
			if wasActive {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No remote is active now."))
			}
			return nil
		})
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRemotes(func(b *remoteBook) error {
			if err := b.activate(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active remote: %s\n", ui.RenderAccent(args[0]))
			return nil
		})
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remotes, marking the active one",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := readRemotes()
		if err != nil {
			return err
		}
		views := make([]remoteView, 0, len(book.Remotes))
		for _, name := range slices.Sorted(maps.Keys(book.Remotes)) {
			views = append(views, newRemoteView(book, name))
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("No remotes. Add one with: rd remote add <name> <url>"))
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tPAGE SIZE\tTOKEN")
		for _, v := range views {
			marker := "  "
			if v.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, v.Name, v.URL, pageSizeLabel(v.PageSize), v.Token)
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one remote (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := readRemotes()
		if err != nil {
			return err
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		name, _, err = book.lookup(name)
		if err != nil {
			return err
		}

		v := newRemoteView(book, name)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), v)
		}
		printRemote(cmd.OutOrStdout(), v)
		return nil
	},
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(b *remoteBook) error) error {
	book, err := readRemotes()
	if err != nil {
		return err
	}
	if err := fn(book); err != nil {
		return err
	}
	return book.write()
}

// remoteView is how a remote is shown. The token is always masked.
type remoteView struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	remote
}

func newRemoteView(b *remoteBook, name string) remoteView {
	r := b.Remotes[name]
	r.Token = maskToken(r.Token)
	return remoteView{Name: name, Active: name == b.Active, remote: r}
}

func printRemote(w io.Writer, v remoteView) {
	name := ui.RenderAccent(v.Name)
	if v.Active {
		name += ui.RenderMuted(" (active)")
	}
	fmt.Fprintf(w, "Remote:      %s\n", name)
	fmt.Fprintf(w, "URL:         %s\n", v.URL)
	fmt.Fprintf(w, "Page size:   %s\n", pageSizeLabel(v.PageSize))
	if v.Token != "" {
		fmt.Fprintf(w, "Token:       %s\n", v.Token)
	}
	if v.NATSURL != "" {
		fmt.Fprintf(w, "NATS:        %s\n", v.NATSURL)
	}
}

func pageSizeLabel(n int) string {
	if n == 0 {
		return "server default"
	}
	return strconv.Itoa(n)
}

// maskToken keeps the first eight characters of a token.
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + strings.Repeat("*", len(token)-8)
}

func init() {
	f := remoteAddCmd.Flags()
	f.String("token", "", "bearer token sent to this remote")
	f.String("nats", "", "NATS URL rd watch subscribes to")
	f.Int("page-size", 0, "default page size for rd list (server default when 0)")
	f.Bool("use", false, "make this the active remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
