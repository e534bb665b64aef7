package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/spf13/cobra"
)

func conversationsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "Reload and list conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				snap, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, snap.Conversations); done {
					return err
				}
				printConversations(w, snap.Conversations, selfID(snap))
				return nil
			})
		},
	}
}

func printConversations(out io.Writer, convs []remote.Conversation, self string) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWITH\tUNREAD\tLAST MESSAGE\tWHEN")
	for i := range convs {
		c := &convs[i]
		unread := ""
		if c.UnreadCount > 0 {
			unread = unreadFg(c.UnreadCount)
		}
		var last, when string
		if lm := c.LastMessage; lm != nil {
			last = preview(lm.Message, 40)
			when = formatWhen(lm.CreatedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, participants(c, self), unread, last, when)
	}
	_ = w.Flush()
}

func conversationCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Create, change and delete conversations",
	}

	create := &cobra.Command{
		Use:   "create <userId>...",
		Short: "Create a conversation with the given participants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.CreateConversation(ctx, args)
				if err != nil {
					return err
				}
				return o.printConversation(cmd.OutOrStdout(), "Created", &resp.Conversation)
			})
		},
	}

	membership := func(use, short string, action remote.MembershipAction) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <conversationId> <userId>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
					resp, err := c.UpdateConversation(ctx, &rpc.UpdateConversationRequest{ID: args[0], Action: action, UserID: args[1]})
					if err != nil {
						return err
					}
					return o.printConversation(cmd.OutOrStdout(), "Updated", &resp.Conversation)
				})
			},
		}
	}

	del := &cobra.Command{
		Use:   "delete <conversationId>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				if err := c.DeleteConversation(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted conversation %s\n", okMark, args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(
		create,
		membership("add", "Add a participant", remote.ActionAdd),
		membership("remove", "Remove a participant", remote.ActionRemove),
		del,
	)
	return cmd
}

func openCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <userId>",
		Short: "Find or start the direct conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.OpenConversation(ctx, args[0])
				if err != nil {
					return err
				}
				return o.printConversation(cmd.OutOrStdout(), "Opened", &resp.Conversation)
			})
		},
	}
}

func (o *options) printConversation(w io.Writer, verb string, c *remote.Conversation) error {
	if done, err := o.emit(w, c); done {
		return err
	}
	fmt.Fprintf(w, "%s %s conversation %s with %s\n", okMark, verb, bold(c.ID), participants(c, ""))
	return nil
}

func messagesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversationId>",
		Short: "Select a conversation and show its latest messages",
		Long:  "Select a conversation in the daemon and print its latest page of messages. Messages addressed to you are marked read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				snap, err := c.SelectConversation(ctx, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, snap.Messages); done {
					return err
				}
				printMessages(w, snap.Messages, selfID(snap))
				return nil
			})
		},
	}
}

func printMessages(w io.Writer, msgs []chat.Message, self string) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	for _, m := range msgs {
		from := m.Sender.DisplayName()
		if m.Sender.ID == self {
			from = "you"
		}
		var flags []string
		switch {
		case m.Pending():
			flags = append(flags, "sending")
		case m.State == chat.StateEdited:
			flags = append(flags, "edited")
		}
		if m.Read && m.Sender.ID == self {
			flags = append(flags, "read")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " " + dim("("+strings.Join(flags, ", ")+")")
		}
		fmt.Fprintf(w, "%s %s %s%s\n  %s\n", dim(formatWhen(m.CreatedAt)), bold(from), dim(m.ID), suffix, m.Body)
	}
}

func sendCmd(o *options) *cobra.Command {
	var to string
	var files []string
	cmd := &cobra.Command{
		Use:   "send <conversationId> <text>...",
		Short: "Send a message to a conversation",
		Long: `Select the conversation and send text to it. The receiver defaults to the
first other participant; use --to to address someone else in a group.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				if _, err := c.SelectConversation(ctx, args[0]); err != nil {
					return err
				}
				resp, err := c.SendMessage(ctx, &rpc.SendMessageRequest{ReceiverID: to, Body: body, Files: files})
				if err != nil {
					return err
				}
				return o.printMessage(cmd.OutOrStdout(), "Sent", &resp.Message)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "receiver user id")
	cmd.Flags().StringSliceVar(&files, "file", nil, "attachment reference (repeatable)")
	return cmd
}

func editCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <messageId> <text>...",
		Short: "Replace the body of one of your messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.UpdateMessage(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return o.printMessage(cmd.OutOrStdout(), "Edited", &resp.Message)
			})
		},
	}
}

func readCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <messageId>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.MarkRead(ctx, args[0])
				if err != nil {
					return err
				}
				return o.printMessage(cmd.OutOrStdout(), "Marked read", &resp.Message)
			})
		},
	}
}

func (o *options) printMessage(w io.Writer, verb string, m *chat.Message) error {
	if done, err := o.emit(w, m); done {
		return err
	}
	fmt.Fprintf(w, "%s %s message %s\n", okMark, verb, bold(m.ID))
	return nil
}

func rmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <messageId>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				if err := c.DeleteMessage(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted message %s\n", okMark, args[0])
				return nil
			})
		},
	}
}

func searchCmd(o *options) *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search messages on the backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.Search(ctx, strings.Join(args, " "), conversation)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, resp.Results); done {
					return err
				}
				if len(resp.Results) == 0 {
					fmt.Fprintln(w, "No matches.")
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CONVERSATION\tMESSAGE\tFROM\tWHEN\tTEXT")
				for _, m := range resp.Results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ConversationID, m.ID, m.Sender.DisplayName(), formatWhen(m.CreatedAt), preview(m.Body, 60))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "limit the search to one conversation")
	return cmd
}

func unreadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Reload and print the number of unread messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				snap, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, map[string]int{"unreadCount": snap.UnreadCount}); done {
					return err
				}
				fmt.Fprintln(w, snap.UnreadCount)
				return nil
			})
		},
	}
}

func localCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Query the daemon's offline mirror",
	}
	var conversation string
	var limit int
	search := &cobra.Command{
		Use:   "search <query>...",
		Short: "Full-text search over mirrored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.LocalSearch(ctx, &rpc.LocalSearchRequest{
					Query:          strings.Join(args, " "),
					ConversationID: conversation,
					Limit:          limit,
				})
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if done, err := o.emit(w, resp.Results); done {
					return err
				}
				if len(resp.Results) == 0 {
					fmt.Fprintln(w, "No matches.")
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CONVERSATION\tMESSAGE\tFROM\tWHEN\tSNIPPET")
				for _, r := range resp.Results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ConversationID, r.MsgID, r.SenderName, formatWhen(time.UnixMilli(r.CreatedAtMs)), r.Snippet)
				}
				return tw.Flush()
			})
		},
	}
	search.Flags().StringVar(&conversation, "conversation", "", "limit the search to one conversation")
	search.Flags().IntVar(&limit, "limit", 0, "maximum number of results (daemon default when 0)")
	cmd.AddCommand(search)
	return cmd
}

func selfID(snap *chat.Snapshot) string {
	if snap.Identity != nil {
		return snap.Identity.ID
	}
	return ""
}

func participants(c *remote.Conversation, self string) string {
	var names []string
	for _, u := range c.Users {
		if u.ID != self {
			names = append(names, u.DisplayName())
		}
	}
	return strings.Join(names, ", ")
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("2006-01-02 15:04")
}
