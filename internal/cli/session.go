package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	bold     = color.New(color.Bold).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
	unreadFg = color.New(color.FgHiMagenta, color.Bold).SprintFunc()
)

func statusColor(s string) string {
	switch s {
	case "READY":
		return color.New(color.FgHiGreen).Sprint(s)
	case "SYNCING", "CONNECTING", "BOOTING":
		return color.New(color.FgCyan).Sprint(s)
	case "DEGRADED":
		return color.New(color.FgYellow).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

func statusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session and mirror status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, st); done {
					return err
				}
				user := "-"
				if st.Identity != nil {
					user = fmt.Sprintf("%s <%s>", st.Identity.DisplayName(), st.Identity.Email)
				}
				polling := "off"
				if st.Polling {
					polling = "every " + st.PollInterval
				}
				lastRefresh := "never"
				if !st.LastRefreshAt.IsZero() {
					lastRefresh = st.LastRefreshAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "Profile:       %s\n", st.Profile)
				fmt.Fprintf(w, "Status:        %s", statusColor(st.Status))
				if st.StatusMessage != "" {
					fmt.Fprintf(w, " %s", dim("("+st.StatusMessage+")"))
				}
				fmt.Fprintln(w)
				fmt.Fprintf(w, "User:          %s\n", user)
				fmt.Fprintf(w, "Backend:       %s\n", st.BaseURL)
				fmt.Fprintf(w, "Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
				fmt.Fprintf(w, "Polling:       %s\n", polling)
				fmt.Fprintf(w, "Unread:        %d\n", st.UnreadCount)
				fmt.Fprintf(w, "Mirror:        %d conversations, %d messages (schema v%d)\n", st.Conversations, st.Messages, st.SchemaVersion)
				fmt.Fprintf(w, "Last refresh:  %s\n", lastRefresh)
				if st.DroppedEvents > 0 {
					fmt.Fprintf(w, "Dropped events: %d\n", st.DroppedEvents)
				}
				return nil
			})
		},
	}
}

func loginCmd(o *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign the daemon in with email and password",
		Long: `Sign the daemon in. The email defaults to the profile's configured email.
Without --password the password is read from the terminal, or from the first
line of stdin when it is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := o.resolveProfile()
			if err != nil {
				return err
			}
			if email == "" {
				email = settings.Email
			}
			if email == "" {
				return errors.New("no email given\nHint: use --email or set email in the profile config")
			}
			if password == "" {
				password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, resp); done {
					return err
				}
				fmt.Fprintf(w, "%s Signed in as %s <%s>\n", okMark, resp.User.DisplayName(), resp.User.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func logoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign the daemon out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Signed out\n", okMark)
				return nil
			})
		},
	}
}

func watchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [prefix...]",
		Short: "Stream daemon events as JSON lines",
		Long:  "Stream daemon events whose kind starts with one of the prefixes (for example chat. or poll.) until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _, err := o.resolveProfile()
			if err != nil {
				return err
			}
			c, err := rpc.Dial(profile.SocketPath(name))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Watch(cmd.Context(), args...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				evt, err := stream.Recv()
				if err != nil {
					if cmd.Context().Err() != nil || errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				if err := enc.Encode(evt); err != nil {
					return err
				}
			}
		},
	}
}

func profilesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List known profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrEmpty(profile.ConfigPath())
			if err != nil {
				return err
			}
			names, err := profile.List()
			if err != nil {
				return err
			}
			for name := range cfg.Profiles {
				if !slices.Contains(names, name) {
					names = append(names, name)
				}
			}
			slices.Sort(names)
			w := cmd.OutOrStdout()
			if done, err := o.emit(w, names); done {
				return err
			}
			current, _ := profile.Resolve("", cfg.DefaultProfile)
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s  %s\n", marker, name, dim(cfg.Profile(name).BaseURL))
			}
			return nil
		},
	}
}
