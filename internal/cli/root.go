// Package cli implements the inboxctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/spf13/cobra"
	grpcstatus "google.golang.org/grpc/status"
)

type options struct {
	profile string
	json    bool
	timeout time.Duration
}

// Root returns the inboxctl root command.
func Root() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "inboxctl",
		Short:         "Control the inbox daemon of a profile",
		Long:          "inboxctl talks to a running inboxd over its unix socket to sign in, list conversations and send messages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.profile, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&o.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 20*time.Second, "deadline for each daemon call")

	root.AddCommand(
		statusCmd(o),
		loginCmd(o),
		logoutCmd(o),
		conversationsCmd(o),
		conversationCmd(o),
		openCmd(o),
		messagesCmd(o),
		sendCmd(o),
		editCmd(o),
		rmCmd(o),
		readCmd(o),
		searchCmd(o),
		unreadCmd(o),
		localCmd(o),
		watchCmd(o),
		profilesCmd(o),
	)
	return root
}

// ErrorMessage strips the RPC framing from errors returned by the daemon.
func ErrorMessage(err error) string {
	if s, ok := grpcstatus.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}

// resolveProfile applies flag, then config default, then "main".
func (o *options) resolveProfile() (string, config.Profile, error) {
	cfg, err := config.LoadOrEmpty(profile.ConfigPath())
	if err != nil {
		return "", config.Profile{}, err
	}
	name, err := profile.Resolve(o.profile, cfg.DefaultProfile)
	if err != nil {
		return "", config.Profile{}, err
	}
	return name, cfg.Profile(name), nil
}

// call connects to the profile's daemon and runs fn with a bounded context.
func (o *options) call(cmd *cobra.Command, fn func(ctx context.Context, c *rpc.Client) error) error {
	name, _, err := o.resolveProfile()
	if err != nil {
		return err
	}
	c, err := rpc.Dial(profile.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	return fn(ctx, c)
}

// emit writes v as indented JSON when --json is set and reports whether it did.
func (o *options) emit(w io.Writer, v any) (bool, error) {
	if !o.json {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
